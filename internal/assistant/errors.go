package assistant

import (
	"encoding/json"
	"errors"
	"fmt"

	"SupportChat/internal/backend"
)

var (
	// ErrEmptyQuery is returned when the query text is blank after trimming
	ErrEmptyQuery = errors.New("query is empty")

	// ErrMissingActionID is returned when an action carries no action id
	ErrMissingActionID = errors.New("action id is empty")
)

// TransportError reports a call that never produced a response
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BackendError reports a response with a non-success status, or a success
// status whose body could not be decoded.
type BackendError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("backend error %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("backend error %d", e.StatusCode)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// DecodeError builds a BackendError from a non-success response body
func DecodeError(statusCode int, body []byte) *BackendError {
	be := &BackendError{StatusCode: statusCode}

	var reply backend.ErrorReply
	if err := json.Unmarshal(body, &reply); err == nil {
		be.Detail = reply.DetailText()
	}
	return be
}
