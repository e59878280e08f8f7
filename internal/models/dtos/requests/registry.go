package requests

type RegisterRequest struct {
	InstitutionName string `json:"institution_name"`
	InstitutionCode string `json:"institution_code,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	Plan            string `json:"plan,omitempty"`
}

type AdminLoginRequest struct {
	TenantID string `json:"tenant_id"`
	Password string `json:"password"`
}

type PairApproveRequest struct {
	Code string `json:"code"`
}
