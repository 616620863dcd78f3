package errors

const (
	HttpBadRequestError = "bad_request"
	HttpInternalError   = "internal_error"
	HttpTimeoutError    = "timeout"
)

// ErrorResponse is the error response body for report requests.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
