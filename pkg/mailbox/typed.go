package mailbox

// Request is a typed request bound to one opcode.
type Request interface {
	// Opcode identifies the request type.
	Opcode() Opcode
	// NewRequest creates an empty request of the same type.
	NewRequest() Request
	// EncodeCommand fills the descriptor.
	EncodeCommand(*Command) error
	// DecodeCommand populates the request from the descriptor.
	DecodeCommand(*Command) error
}

// RequestTypes maps opcodes to request prototypes.
var RequestTypes = map[Opcode]Request{}

// RegisterRequest registers request prototypes, usually from init.
func RegisterRequest(reqs ...Request) {
	for _, req := range reqs {
		RequestTypes[req.Opcode()] = req
	}
}

// EncodeRequest encodes a typed request into cmd.
func EncodeRequest(req Request, cmd *Command) error {
	cmd.Reset()
	if err := req.EncodeCommand(cmd); err != nil {
		return err
	}
	cmd.Opcode = req.Opcode()
	return nil
}

// DecodeRequest decodes cmd into the registered request type.
func DecodeRequest(cmd *Command) (Request, error) {
	proto, ok := RequestTypes[cmd.Opcode]
	if !ok {
		return nil, &ErrUnknownOpcode{Opcode: cmd.Opcode}
	}
	req := proto.NewRequest()
	if err := req.DecodeCommand(cmd); err != nil {
		return nil, err
	}
	return req, nil
}
