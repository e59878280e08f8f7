package responses

// StockHoldResult reports the station's total held quantity for the product
// after the adjustment, with the lease deadline.
type StockHoldResult struct {
	HeldQty   int64  `json:"held_qty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type ScheduledHoldResult struct {
	Status    string `json:"status"` // held or released
	ExpiresAt string `json:"expires_at,omitempty"`
}

type HoldRefreshResult struct {
	Refreshed int64  `json:"refreshed"`
	ExpiresAt string `json:"expires_at"`
}

type HoldClearResult struct {
	Released int64 `json:"released"`
}

type HoldCommitResult struct {
	Purchases    int `json:"purchases"`
	Reservations int `json:"reservations"`
}
