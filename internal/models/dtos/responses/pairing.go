package responses

type PairStartResult struct {
	Code      string `json:"code"`
	VerifyURL string `json:"verify_url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

// PairPollResult carries credentials only on the single consuming poll.
type PairPollResult struct {
	Status   string `json:"status"`
	TenantID string `json:"tenant_id,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	PushURL  string `json:"push_url,omitempty"`
}

type RegisterResult struct {
	TenantID string `json:"tenant_id"`
	APIKey   string `json:"api_key"`
}

type AdminLoginResult struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in_seconds"`
}
