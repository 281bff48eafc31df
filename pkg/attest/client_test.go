package attest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

type attestTestEnv struct {
	t      *testing.T
	mbox   *mailbox.Mailbox
	client *Client
	cancel func()
	doneCh chan struct{}
}

func newAttestTestEnv(t *testing.T, h mailbox.Handler) *attestTestEnv {
	ctx, cancel := context.WithCancel(context.TODO())
	env := &attestTestEnv{
		t:      t,
		mbox:   mailbox.New().WithTimeout(time.Second),
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	env.client = NewClient(env.mbox)
	peer := mailbox.NewPeer(env.mbox.Port(), h)
	go func() {
		defer close(env.doneCh)
		peer.Run(ctx)
	}()
	return env
}

func (e *attestTestEnv) stop() {
	e.cancel()
	<-e.doneCh
}

func statusPeer(status mailbox.Status) mailbox.Handler {
	return mailbox.HandleCommandFunc(func(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
		return mailbox.NewResponse(cmd.Opcode, status)
	})
}

func TestInitializeDeviceKey(t *testing.T) {
	testCases := []struct {
		name   string
		status mailbox.Status
	}{
		{"success", mailbox.StatusSuccess},
		{"invalid argument", mailbox.StatusInvalidArgument},
		{"generic", mailbox.StatusGeneric},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAttestTestEnv(t, statusPeer(tc.status))
			defer env.stop()
			status, err := env.client.InitializeDeviceKey(context.TODO(), bytes.Repeat([]byte{1}, PrivateKeyLength))
			require.NoError(t, err)
			require.Equal(t, tc.status, status)
		})
	}
}

func TestInitializeDeviceKeyForwarded(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, PrivateKeyLength)
	cmdCh := make(chan mailbox.Command, 1)
	env := newAttestTestEnv(t, mailbox.HandleCommandFunc(func(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
		cmdCh <- *cmd
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSuccess)
	}))
	defer env.stop()

	status, err := env.client.InitializeDeviceKey(context.TODO(), key)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, status)
	cmd := <-cmdCh
	require.Equal(t, OpPrivateKeySet, cmd.Opcode)
	require.Equal(t, 1, cmd.Size)
	require.Equal(t, key, cmd.Arg(0).Buf)
}

func TestSignFixedSignature(t *testing.T) {
	fixed := make([]byte, SignatureLength)
	for n := range fixed {
		fixed[n] = byte(n * 3)
	}
	pk := bytes.Repeat([]byte{0x42}, RawPublicKeyLength)
	env := newAttestTestEnv(t, mailbox.HandleCommandFunc(func(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
		var req Signature
		if err := req.DecodeCommand(cmd); err != nil {
			return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
		}
		if string(req.Message) != "abc" || !bytes.Equal(req.PublicKey, pk) {
			return mailbox.NewResponse(cmd.Opcode, mailbox.StatusInvalidArgument)
		}
		copy(req.Signature, fixed)
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSuccess)
	}))
	defer env.stop()

	sig := make([]byte, SignatureLength)
	status, err := env.client.Sign(context.TODO(), []byte("abc"), pk, sig)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, status)
	require.Equal(t, fixed, sig)
}

func TestSignTransportFailure(t *testing.T) {
	client := NewClient(mailbox.New().WithTimeout(10 * time.Millisecond))
	status, err := client.Sign(context.TODO(), []byte("abc"), nil, make([]byte, SignatureLength))
	require.Equal(t, mailbox.ErrTimeout, err)
	require.Equal(t, mailbox.StatusResponseTimeout, status)
}

func TestDecodeRequest(t *testing.T) {
	var cmd mailbox.Command
	require.NoError(t, mailbox.EncodeRequest(&Signature{
		Message:   []byte("hello"),
		PublicKey: []byte{4},
		Signature: make([]byte, 2),
	}, &cmd))
	require.Equal(t, OpSignature, cmd.Opcode)
	require.Equal(t, 4, cmd.Size)
	require.Equal(t, uint32(5), cmd.Arg(1).Word)

	req, err := mailbox.DecodeRequest(&cmd)
	require.NoError(t, err)
	sig, ok := req.(*Signature)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), sig.Message)

	cmd.Args[1].Word = 6
	_, err = mailbox.DecodeRequest(&cmd)
	require.Equal(t, mailbox.ErrBadDescriptor, err)

	cmd.Opcode = GroupCKS | 0xff
	_, err = mailbox.DecodeRequest(&cmd)
	require.Equal(t, &mailbox.ErrUnknownOpcode{Opcode: cmd.Opcode}, err)
}
