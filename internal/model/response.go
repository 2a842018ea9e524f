package model

// SuccessResponse is the standard envelope for successful API responses.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the standard envelope for error responses. MinutesLeft
// is set only on rate-limit (429) responses.
type ErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	MinutesLeft int    `json:"minutesLeft,omitempty"`
}
