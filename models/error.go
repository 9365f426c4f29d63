package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// ErrorResponse is the structured error body used by auth and validation
// failures
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// HealthCheckResponse returns the health check response struct
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
