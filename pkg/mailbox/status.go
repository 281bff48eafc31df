package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// Status is the status code carried in slot 0 of a Response.
// Values follow the error numbering of the radio stack so a status
// is passed through unchanged from the peer to the caller.
type Status uint32

// Status codes.
const (
	StatusSuccess         Status = 0
	StatusFailed          Status = 1
	StatusNoBufs          Status = 3
	StatusBusy            Status = 5
	StatusParse           Status = 6
	StatusInvalidArgument Status = 7
	StatusSecurity        Status = 8
	StatusUnsupported     Status = 12
	StatusInvalidState    Status = 13
	StatusResponseTimeout Status = 28
	StatusGeneric         Status = 255
)

var statusNames = map[Status]string{
	StatusSuccess:         "Success",
	StatusFailed:          "Failed",
	StatusNoBufs:          "NoBufs",
	StatusBusy:            "Busy",
	StatusParse:           "Parse",
	StatusInvalidArgument: "InvalidArgument",
	StatusSecurity:        "Security",
	StatusUnsupported:     "Unsupported",
	StatusInvalidState:    "InvalidState",
	StatusResponseTimeout: "ResponseTimeout",
	StatusGeneric:         "Generic",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint32(s))
}

// OK indicates success.
func (s Status) OK() bool {
	return s == StatusSuccess
}

// Err converts a status into an error, nil on success.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	return &StatusError{Status: s}
}

// StatusError wraps a non-success status as an error.
type StatusError struct {
	Status Status
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("status %s (%d)", e.Status, uint32(e.Status))
}

// StatusFromError maps an error returned by a Caller to a Status.
// Wrapped errors are unwrapped.
func StatusFromError(err error) Status {
	var se *StatusError
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrBusy):
		return StatusBusy
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusResponseTimeout
	case errors.As(err, &se):
		return se.Status
	}
	return StatusFailed
}
