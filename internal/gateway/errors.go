package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/edachat-cli/internal/backend"
)

// RequestFailedError wraps any failure of a submission. Its message is the
// text shown to the user as the conversation's last error.
type RequestFailedError struct {
	Err error
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

func (e *RequestFailedError) Error() string {
	var (
		ue *backend.UnreachableError
		se *backend.ServerError
		be *backend.BadRequestError
		de *backend.DecodeError
	)
	switch {
	case errors.As(e.Err, &ue):
		return fmt.Sprintf("Could not reach the analysis server at %s. Is it running?", ue.Host)
	case errors.As(e.Err, &se):
		return withDetail(fmt.Sprintf("Error: %d", se.StatusCode), se.Detail)
	case errors.As(e.Err, &be):
		return withDetail(fmt.Sprintf("Error: %d", be.StatusCode), be.Detail)
	case errors.As(e.Err, &de):
		return "The server returned a response that could not be read."
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "The request timed out."
	case errors.Is(e.Err, context.Canceled):
		return "The request was cancelled."
	case e.Err == nil:
		return "Failed to get answer"
	}
	return e.Err.Error()
}

func withDetail(head, detail string) string {
	if detail == "" {
		return head
	}
	return head + " (" + detail + ")"
}
