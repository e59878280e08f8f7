package requests

type StockHoldRequest struct {
	StationID  string `json:"station_id"`
	StudentID  int64  `json:"student_id"`
	ProductID  int64  `json:"product_id"`
	VariantID  int64  `json:"variant_id,omitempty"`
	DeltaQty   int64  `json:"delta_qty"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

type ScheduledHoldRequest struct {
	StationID       string `json:"station_id"`
	StudentID       int64  `json:"student_id"`
	ServiceID       int64  `json:"service_id"`
	ServiceDate     string `json:"service_date"`
	SlotStartTime   string `json:"slot_start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	TTLMinutes      int    `json:"ttl_minutes,omitempty"`
	Release         bool   `json:"release,omitempty"`
}

type HoldHeartbeatRequest struct {
	StationID  string `json:"station_id"`
	StudentID  *int64 `json:"student_id,omitempty"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

type HoldClearRequest struct {
	StationID string `json:"station_id"`
	StudentID *int64 `json:"student_id,omitempty"`
}

// HoldCommitRequest converts a station's outstanding holds for one student
// into durable purchase/reservation rows.
type HoldCommitRequest struct {
	StationID string `json:"station_id"`
	StudentID int64  `json:"student_id"`
}
