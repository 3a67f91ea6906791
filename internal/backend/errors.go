package backend

import "fmt"

// APIError represents a non-success response from the analysis backend.
type APIError struct {
	StatusCode int
	// Detail is the server-provided message (FastAPI "detail" field).
	Detail    string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		if e.RequestID != "" {
			return fmt.Sprintf("api error: status=%d request_id=%s detail=%s", e.StatusCode, e.RequestID, e.Detail)
		}
		return fmt.Sprintf("api error: status=%d detail=%s", e.StatusCode, e.Detail)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: status=%d request_id=%s", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// BadRequestError indicates a 4xx request problem (e.g., 422 form validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// ServerError indicates 5xx errors, usually an analysis failure.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("backend error: %s", e.APIError.Error()) }

// UnreachableError indicates the backend could not be contacted at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("backend unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// DecodeError indicates a success status with a body that is not the
// expected JSON document.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("malformed response: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
