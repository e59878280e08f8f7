package responses

import "time"

// APIResponse is the envelope every endpoint returns: an explicit status flag
// plus either data or an error detail string.
type APIResponse[T any] struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      *T        `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}
