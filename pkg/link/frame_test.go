package link

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

func TestFrameRequest(t *testing.T) {
	var cmd mailbox.Command
	require.NoError(t, cmd.Set(0x0102,
		mailbox.InputArg([]byte("abc")),
		mailbox.WordArg(3),
		mailbox.OutputArg(make([]byte, 64))))

	pkt, err := RequestFrame(7, &cmd).Encode()
	require.NoError(t, err)
	f, err := DecodeFrame(pkt)
	require.NoError(t, err)
	require.Equal(t, uint32(7), f.Seq)
	require.False(t, f.Reply)
	require.Equal(t, mailbox.Opcode(0x0102), f.Opcode)
	require.Len(t, f.Args, 3)
	require.Equal(t, uint32(64), f.Args[2].Word)
	require.Empty(t, f.Args[2].Buf)

	decoded, err := f.Command()
	require.NoError(t, err)
	require.Equal(t, cmd.Opcode, decoded.Opcode)
	require.Equal(t, 3, decoded.Size)
	require.Equal(t, []byte("abc"), decoded.Arg(0).Buf)
	require.Equal(t, uint32(3), decoded.Arg(1).Word)
	require.Equal(t, mailbox.ArgOutput, decoded.Arg(2).Kind)
	require.Len(t, decoded.Arg(2).Buf, 64)
}

func TestFrameReply(t *testing.T) {
	out := make([]byte, 4)
	var cmd mailbox.Command
	require.NoError(t, cmd.Set(1, mailbox.InputArg([]byte{1}), mailbox.OutputArg(out)))

	req := RequestFrame(1, &cmd)
	req.Origin = 0x1234567890
	pkt, err := req.Encode()
	require.NoError(t, err)
	req, err = DecodeFrame(pkt)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234567890), req.Origin)
	remote, err := req.Command()
	require.NoError(t, err)
	copy(remote.Args[1].Buf, []byte{9, 8, 7, 6})
	pkt, err = req.Answer(remote, mailbox.NewResponse(1, mailbox.StatusSuccess, 5)).Encode()
	require.NoError(t, err)

	f, err := DecodeFrame(pkt)
	require.NoError(t, err)
	require.True(t, f.Reply)
	require.Equal(t, uint32(1), f.Seq)
	require.Equal(t, req.Origin, f.Origin)
	_, err = f.Command()
	require.Equal(t, ErrBadFrame, err)

	rsp, err := f.Response(&cmd)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, rsp.Status())
	require.Equal(t, []uint32{5}, rsp.Values())
	require.Equal(t, []byte{9, 8, 7, 6}, out)
}

func TestDecodeFrameErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"truncated key", []byte{0xff}},
		{"unsupported wire type", []byte{0x0b}},
		{"truncated bytes", []byte{0x2a, 0x05, 0x08}},
		{"varint args", []byte{0x28, 0x01}},
		{"bad arg kind", []byte{0x2a, 0x02, 0x08, 0x09}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrame(tc.data)
			require.Equal(t, ErrBadFrame, err)
		})
	}
}

func TestFrameCommandLimits(t *testing.T) {
	f := &Frame{Opcode: 1, Size: 2, Args: []mailbox.Arg{mailbox.WordArg(1)}}
	_, err := f.Command()
	require.Equal(t, ErrBadFrame, err)

	f = &Frame{Opcode: 1, Size: 1, Args: []mailbox.Arg{{Kind: mailbox.ArgOutput, Word: MaxBufferLen + 1}}}
	_, err = f.Command()
	require.Equal(t, ErrBadFrame, err)
}
