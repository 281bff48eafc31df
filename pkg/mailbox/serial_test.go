package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialFIFO(t *testing.T) {
	h := newGatedHandler()
	env := newMailboxTestEnv(t, h).start()
	defer env.stop()
	serial := NewSerial(env.mbox)

	const callers = 4
	resultCh := make(chan error, callers)
	for n := 1; n <= callers; n++ {
		go func(op Opcode) {
			var cmd Command
			cmd.Set(op)
			_, err := serial.Call(context.TODO(), &cmd)
			resultCh <- err
		}(Opcode(n))
		if n == 1 {
			require.Equal(t, Opcode(1), (<-h.enterCh).Opcode)
		} else {
			waitFor(t, func() bool { return serial.Waiting() == n-1 })
		}
	}

	h.releaseCh <- StatusSuccess
	for n := 2; n <= callers; n++ {
		require.Equal(t, Opcode(n), (<-h.enterCh).Opcode)
		h.releaseCh <- StatusSuccess
	}
	for n := 0; n < callers; n++ {
		require.NoError(t, <-resultCh)
	}
	require.Equal(t, 0, serial.Waiting())
}

func TestSerialCancelWaiting(t *testing.T) {
	h := newGatedHandler()
	env := newMailboxTestEnv(t, h).start()
	defer env.stop()
	serial := NewSerial(env.mbox)

	firstCh := make(chan error, 1)
	go func() {
		var cmd Command
		cmd.Set(1)
		_, err := serial.Call(context.TODO(), &cmd)
		firstCh <- err
	}()
	<-h.enterCh

	ctx, cancel := context.WithTimeout(context.TODO(), 20*time.Millisecond)
	defer cancel()
	var cmd Command
	cmd.Set(2)
	_, err := serial.Call(ctx, &cmd)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, 0, serial.Waiting())

	h.releaseCh <- StatusSuccess
	require.NoError(t, <-firstCh)

	go func() {
		<-h.enterCh
		h.releaseCh <- StatusSuccess
	}()
	cmd.Set(3)
	rsp, err := serial.Call(context.TODO(), &cmd)
	require.NoError(t, err)
	require.Equal(t, Opcode(3), rsp.Opcode)
}
