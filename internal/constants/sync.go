package constants

// Entity types carried in sync changes
const (
	EntityStudentPoints = "student_points"
	EntityStudent       = "student"
	EntityProductStock  = "product_stock"
	EntitySetting       = "setting"
)

// Action types carried in sync changes
const (
	ActionUpdate = "update"
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// Hold kinds in the purchase_holds table
const (
	HoldTypeProduct   = "product"
	HoldTypeScheduled = "scheduled"
)

// Pairing ticket states reported to polling stations
const (
	PairStatusPending  = "pending"
	PairStatusReady    = "ready"
	PairStatusConsumed = "consumed"
	PairStatusExpired  = "expired"
)
