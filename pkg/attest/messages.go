package attest

import (
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Opcode groups
const (
	GroupCKS mailbox.Opcode = 0x00fc0000
)

// Opcodes
const (
	OpPrivateKeySet mailbox.Opcode = GroupCKS | 0x0001
	OpSignature     mailbox.Opcode = GroupCKS | 0x0002
)

// Key and signature sizes of P-256.
const (
	PrivateKeyLength   = 32
	RawPublicKeyLength = 64
	PublicKeyLength    = RawPublicKeyLength + 1
	SignatureLength    = 64
)

// PrivateKeySet provisions the attestation private key in the peer.
// Slots: [0] input key.
type PrivateKeySet struct {
	PrivateKey []byte
}

// Opcode implements Request.
func (r *PrivateKeySet) Opcode() mailbox.Opcode { return OpPrivateKeySet }

// NewRequest implements Request.
func (r *PrivateKeySet) NewRequest() mailbox.Request { return &PrivateKeySet{} }

// EncodeCommand implements Request.
func (r *PrivateKeySet) EncodeCommand(cmd *mailbox.Command) error {
	return cmd.Set(OpPrivateKeySet, mailbox.InputArg(r.PrivateKey))
}

// DecodeCommand implements Request.
func (r *PrivateKeySet) DecodeCommand(cmd *mailbox.Command) error {
	if cmd.Size != 1 || cmd.Arg(0).Kind != mailbox.ArgInput {
		return mailbox.ErrBadDescriptor
	}
	r.PrivateKey = cmd.Arg(0).Buf
	return nil
}

// Signature asks the peer to sign Message with the provisioned key.
// The peer writes the signature into Signature in place.
// Slots: [0] input message, [1] message length, [2] input public key,
// [3] output signature.
type Signature struct {
	Message   []byte
	PublicKey []byte
	Signature []byte
}

// Opcode implements Request.
func (r *Signature) Opcode() mailbox.Opcode { return OpSignature }

// NewRequest implements Request.
func (r *Signature) NewRequest() mailbox.Request { return &Signature{} }

// EncodeCommand implements Request.
func (r *Signature) EncodeCommand(cmd *mailbox.Command) error {
	return cmd.Set(OpSignature,
		mailbox.InputArg(r.Message),
		mailbox.WordArg(uint32(len(r.Message))),
		mailbox.InputArg(r.PublicKey),
		mailbox.OutputArg(r.Signature))
}

// DecodeCommand implements Request.
func (r *Signature) DecodeCommand(cmd *mailbox.Command) error {
	if cmd.Size != 4 ||
		cmd.Arg(0).Kind != mailbox.ArgInput ||
		cmd.Arg(1).Kind != mailbox.ArgWord ||
		cmd.Arg(2).Kind != mailbox.ArgInput ||
		cmd.Arg(3).Kind != mailbox.ArgOutput {
		return mailbox.ErrBadDescriptor
	}
	msg := cmd.Arg(0).Buf
	if l := int(cmd.Arg(1).Word); l <= len(msg) {
		msg = msg[:l]
	} else {
		return mailbox.ErrBadDescriptor
	}
	r.Message, r.PublicKey, r.Signature = msg, cmd.Arg(2).Buf, cmd.Arg(3).Buf
	return nil
}

func init() {
	mailbox.RegisterRequest(
		(*PrivateKeySet)(nil),
		(*Signature)(nil),
	)
}
