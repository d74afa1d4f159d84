package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       string      `json:"code,omitempty"`    // machine-readable error kind
	Details    interface{} `json:"details,omitempty"` // extra context for the client, e.g. allowed statuses
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorWithCode is Error plus a machine-readable code and optional details.
func ErrorWithCode(statusCode int, code, err string, details interface{}) Response {
	resp := Error(statusCode, err)
	resp.Code = code
	resp.Details = details
	return resp
}
