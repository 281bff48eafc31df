package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy indicates another call owns the mailbox.
	ErrBusy = errors.New("mailbox busy")
	// ErrTimeout indicates the peer didn't signal a response in time.
	ErrTimeout = errors.New("transfer timeout")
	// ErrNotReady indicates the response is read before transfer completes.
	ErrNotReady = errors.New("response not ready")
	// ErrNotWritten indicates transfer is attempted without a written request,
	// or a request is written after transfer began.
	ErrNotWritten = errors.New("request not writable")
	// ErrTooManyArgs indicates more than MaxArgs arguments.
	ErrTooManyArgs = errors.New("too many arguments")
	// ErrNoRequest indicates the peer replies while nothing is in flight.
	ErrNoRequest = errors.New("no request in flight")
	// ErrBadDescriptor indicates the descriptor doesn't match the opcode's shape.
	ErrBadDescriptor = errors.New("bad descriptor")
)

// ErrUnknownOpcode indicates an opcode without a registered request type.
type ErrUnknownOpcode struct {
	Opcode Opcode
}

// Error implements error.
func (e *ErrUnknownOpcode) Error() string {
	return fmt.Sprintf("unknown opcode: %x", uint32(e.Opcode))
}
