package response

// Response represents a standard API response format
type Response struct {
	Status     string         `json:"status"`      // "success" or "error"
	StatusCode int            `json:"status_code"` // HTTP status code
	Data       interface{}    `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"` // stable machine-readable code
	Meta       map[string]any `json:"meta,omitempty"`       // offending identifiers etc.
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

// Pagination describes the page window of a list response
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// SuccessWithPagination wraps a page of items together with the page window
func SuccessWithPagination(statusCode int, data interface{}, page, limit int, total int64) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Meta: map[string]any{
			"pagination": Pagination{Page: page, Limit: limit, Total: total},
		},
	}
}

// ErrorCoded returns an error response carrying a stable code and structured
// metadata, so API clients can branch on the code instead of parsing text.
func ErrorCoded(statusCode int, code, err string, meta map[string]any) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
		ErrorCode:  code,
		Meta:       meta,
	}
}
