package mailbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	require.Equal(t, "Success", StatusSuccess.String())
	require.Equal(t, "InvalidArgument", StatusInvalidArgument.String())
	require.Equal(t, "Status(99)", Status(99).String())
	require.True(t, StatusSuccess.OK())
	require.NoError(t, StatusSuccess.Err())

	err := StatusSecurity.Err()
	require.Error(t, err)
	require.Equal(t, "status Security (8)", err.Error())
	require.Equal(t, StatusSecurity, StatusFromError(err))
}

func TestStatusFromError(t *testing.T) {
	testCases := []struct {
		err    error
		status Status
	}{
		{nil, StatusSuccess},
		{ErrBusy, StatusBusy},
		{ErrTimeout, StatusResponseTimeout},
		{context.DeadlineExceeded, StatusResponseTimeout},
		{&StatusError{Status: StatusNoBufs}, StatusNoBufs},
		{errors.New("broken"), StatusFailed},
		{fmt.Errorf("call: %w", ErrBusy), StatusBusy},
		{fmt.Errorf("call: %w", ErrTimeout), StatusResponseTimeout},
		{fmt.Errorf("peer: %w", StatusSecurity.Err()), StatusSecurity},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.status, StatusFromError(tc.err), "%v", tc.err)
	}
}

func TestCommandSet(t *testing.T) {
	var cmd Command
	require.Equal(t, ErrTooManyArgs, cmd.Set(1, WordArg(1), WordArg(2), WordArg(3), WordArg(4), WordArg(5)))
	require.NoError(t, cmd.Set(2, WordArg(7), InputArg([]byte("ab"))))
	require.Equal(t, Opcode(2), cmd.Opcode)
	require.Equal(t, 2, cmd.Size)
	require.Equal(t, uint32(7), cmd.Arg(0).Word)
	require.Equal(t, ArgInput, cmd.Arg(1).Kind)
	require.Equal(t, Arg{}, cmd.Arg(2))
	require.Equal(t, Arg{}, cmd.Arg(-1))

	require.NoError(t, cmd.Set(3))
	require.Equal(t, 0, cmd.Size)
	require.Equal(t, Arg{}, cmd.Args[0])
}

func TestResponse(t *testing.T) {
	rsp := NewResponse(1, StatusInvalidState, 1, 2, 3, 4)
	require.Equal(t, MaxArgs, rsp.Size)
	require.Equal(t, StatusInvalidState, rsp.Status())
	require.Equal(t, []uint32{1, 2, 3}, rsp.Values())
	require.Nil(t, NewResponse(1, StatusSuccess).Values())
}
