package link

import (
	"errors"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Frame is a descriptor on the wire, encoded as a protobuf message:
//
//   message Frame {
//     uint32 seq = 1;
//     bool reply = 2;
//     uint32 opcode = 3;
//     uint32 size = 4;
//     repeated Arg args = 5;
//     uint64 origin = 6;
//   }
//   message Arg {
//     uint32 kind = 1;
//     uint32 word = 2;
//     bytes data = 3;
//   }
//
// On a request, an output arg carries the buffer length in word.
// On a reply, args hold the response words and output data.
// Origin identifies the requesting Client and is echoed on the reply.
type Frame struct {
	Seq    uint32
	Reply  bool
	Opcode mailbox.Opcode
	Size   int
	Args   []mailbox.Arg
	Origin uint64
}

// MaxBufferLen limits the size of a buffer argument.
const MaxBufferLen = 4096

var (
	// ErrBadFrame indicates the packet is not a valid frame.
	ErrBadFrame = errors.New("bad frame")
)

const (
	fieldSeq    = 1
	fieldReply  = 2
	fieldOpcode = 3
	fieldSize   = 4
	fieldArgs   = 5
	fieldOrigin = 6

	fieldArgKind = 1
	fieldArgWord = 2
	fieldArgData = 3
)

// RequestFrame creates the request frame of cmd.
func RequestFrame(seq uint32, cmd *mailbox.Command) *Frame {
	f := &Frame{Seq: seq, Opcode: cmd.Opcode, Size: cmd.Size}
	for n := 0; n < cmd.Size; n++ {
		arg := cmd.Args[n]
		if arg.Kind == mailbox.ArgOutput {
			arg = mailbox.Arg{Kind: mailbox.ArgOutput, Word: uint32(len(arg.Buf))}
		}
		f.Args = append(f.Args, arg)
	}
	return f
}

// ReplyFrame creates the reply frame of rsp to cmd.
func ReplyFrame(seq uint32, cmd *mailbox.Command, rsp mailbox.Response) *Frame {
	f := &Frame{Seq: seq, Reply: true, Opcode: rsp.Opcode, Size: rsp.Size}
	count := rsp.Size
	if cmd.Size > count {
		count = cmd.Size
	}
	for n := 0; n < count && n < mailbox.MaxArgs; n++ {
		arg := mailbox.Arg{Kind: mailbox.ArgWord}
		if n < rsp.Size {
			arg.Word = rsp.Words[n]
		}
		if n < cmd.Size && cmd.Args[n].Kind == mailbox.ArgOutput {
			arg.Kind, arg.Buf = mailbox.ArgOutput, cmd.Args[n].Buf
		}
		f.Args = append(f.Args, arg)
	}
	return f
}

// Answer creates the reply frame of rsp to the request f.
func (f *Frame) Answer(cmd *mailbox.Command, rsp mailbox.Response) *Frame {
	reply := ReplyFrame(f.Seq, cmd, rsp)
	reply.Origin = f.Origin
	return reply
}

// Command rebuilds the command of a request frame.
// Output buffers are allocated with the requested lengths.
func (f *Frame) Command() (*mailbox.Command, error) {
	if f.Reply || f.Size != len(f.Args) || f.Size > mailbox.MaxArgs {
		return nil, ErrBadFrame
	}
	cmd := &mailbox.Command{Opcode: f.Opcode, Size: f.Size}
	for n, arg := range f.Args {
		if arg.Kind == mailbox.ArgOutput {
			if arg.Word > MaxBufferLen {
				return nil, ErrBadFrame
			}
			arg.Buf = make([]byte, arg.Word)
			arg.Word = 0
		}
		cmd.Args[n] = arg
	}
	return cmd, nil
}

// Response extracts the response of a reply frame and copies output
// data into the buffers of cmd.
func (f *Frame) Response(cmd *mailbox.Command) (mailbox.Response, error) {
	if !f.Reply || f.Size > mailbox.MaxArgs || len(f.Args) > mailbox.MaxArgs {
		return mailbox.Response{}, ErrBadFrame
	}
	rsp := mailbox.Response{Opcode: f.Opcode, Size: f.Size}
	for n, arg := range f.Args {
		rsp.Words[n] = arg.Word
		if arg.Kind == mailbox.ArgOutput && n < cmd.Size && cmd.Args[n].Kind == mailbox.ArgOutput {
			copy(cmd.Args[n].Buf, arg.Buf)
		}
	}
	return rsp, nil
}

// Encode encodes the frame to bytes.
func (f *Frame) Encode() ([]byte, error) {
	b := proto.NewBuffer(nil)
	putVarint(b, fieldSeq, uint64(f.Seq))
	if f.Reply {
		putVarint(b, fieldReply, 1)
	}
	putVarint(b, fieldOpcode, uint64(f.Opcode))
	putVarint(b, fieldSize, uint64(f.Size))
	for _, arg := range f.Args {
		a := proto.NewBuffer(nil)
		putVarint(a, fieldArgKind, uint64(arg.Kind))
		if arg.Word != 0 {
			putVarint(a, fieldArgWord, uint64(arg.Word))
		}
		if len(arg.Buf) > 0 {
			putBytes(a, fieldArgData, arg.Buf)
		}
		putBytes(b, fieldArgs, a.Bytes())
	}
	if f.Origin != 0 {
		putVarint(b, fieldOrigin, f.Origin)
	}
	return b.Bytes(), nil
}

// DecodeFrame decodes bytes into Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	f := &Frame{}
	err := walkFields(data, func(field int, val uint64, raw []byte) error {
		switch field {
		case fieldSeq:
			f.Seq = uint32(val)
		case fieldReply:
			f.Reply = val != 0
		case fieldOpcode:
			f.Opcode = mailbox.Opcode(val)
		case fieldSize:
			f.Size = int(val)
		case fieldArgs:
			if raw == nil || len(f.Args) >= mailbox.MaxArgs {
				return ErrBadFrame
			}
			arg, err := decodeArg(raw)
			if err != nil {
				return err
			}
			f.Args = append(f.Args, arg)
		case fieldOrigin:
			f.Origin = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func decodeArg(data []byte) (arg mailbox.Arg, err error) {
	err = walkFields(data, func(field int, val uint64, raw []byte) error {
		switch field {
		case fieldArgKind:
			if val > uint64(mailbox.ArgOutput) {
				return ErrBadFrame
			}
			arg.Kind = mailbox.ArgKind(val)
		case fieldArgWord:
			arg.Word = uint32(val)
		case fieldArgData:
			if raw == nil || len(raw) > MaxBufferLen {
				return ErrBadFrame
			}
			arg.Buf = append([]byte(nil), raw...)
		}
		return nil
	})
	return
}

func putVarint(b *proto.Buffer, field int, v uint64) {
	b.EncodeVarint(uint64(field<<3 | proto.WireVarint))
	b.EncodeVarint(v)
}

func putBytes(b *proto.Buffer, field int, v []byte) {
	b.EncodeVarint(uint64(field<<3 | proto.WireBytes))
	b.EncodeRawBytes(v)
}

// walkFields visits each field, raw is nil for varint fields.
func walkFields(data []byte, fn func(field int, val uint64, raw []byte) error) error {
	for len(data) > 0 {
		key, n := proto.DecodeVarint(data)
		if n == 0 {
			return ErrBadFrame
		}
		data = data[n:]
		field := int(key >> 3)
		switch key & 7 {
		case proto.WireVarint:
			val, n := proto.DecodeVarint(data)
			if n == 0 {
				return ErrBadFrame
			}
			data = data[n:]
			if err := fn(field, val, nil); err != nil {
				return err
			}
		case proto.WireBytes:
			l, n := proto.DecodeVarint(data)
			if n == 0 || l > uint64(len(data)-n) {
				return ErrBadFrame
			}
			raw := data[n : n+int(l)]
			data = data[n+int(l):]
			if err := fn(field, 0, raw); err != nil {
				return err
			}
		default:
			return ErrBadFrame
		}
	}
	return nil
}
