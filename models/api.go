package models

// Response statuses used in the JSON envelope
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// APIResponse is the envelope shared by every JSON endpoint
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreatePasteRequest is the decoded body of POST /create-paste. Fields stay
// untyped so validation can tell a missing value from a wrongly typed one.
type CreatePasteRequest struct {
	Content    interface{} `json:"content"`
	TTLSeconds interface{} `json:"ttl_seconds"`
	MaxViews   interface{} `json:"max_views"`
}

// CreatePasteResponse carries the new paste's handle
type CreatePasteResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
