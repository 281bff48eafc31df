package mailbox

// Opcode identifies the operation of a descriptor.
type Opcode uint32

// MaxArgs is the number of argument slots in a descriptor.
// It matches the arity of the largest operation.
const MaxArgs = 4

// ArgKind tells how the peer treats an argument slot.
type ArgKind byte

// Argument kinds.
const (
	ArgNone ArgKind = iota
	// ArgWord is a plain 32-bit value.
	ArgWord
	// ArgInput is a caller-owned buffer read by the peer.
	ArgInput
	// ArgOutput is a caller-owned buffer written in place by the peer.
	ArgOutput
)

// String implements fmt.Stringer.
func (k ArgKind) String() string {
	switch k {
	case ArgWord:
		return "word"
	case ArgInput:
		return "input"
	case ArgOutput:
		return "output"
	}
	return "none"
}

// Arg is one argument slot.
type Arg struct {
	Kind ArgKind
	Word uint32
	Buf  []byte
}

// WordArg creates a word argument.
func WordArg(v uint32) Arg {
	return Arg{Kind: ArgWord, Word: v}
}

// InputArg creates an input buffer argument.
func InputArg(b []byte) Arg {
	return Arg{Kind: ArgInput, Buf: b}
}

// OutputArg creates an output buffer argument.
func OutputArg(b []byte) Arg {
	return Arg{Kind: ArgOutput, Buf: b}
}

// Len returns the length of the buffer, or the word value for word args.
func (a Arg) Len() int {
	if a.Kind == ArgWord {
		return int(a.Word)
	}
	return len(a.Buf)
}

// Command is the request descriptor.
type Command struct {
	Opcode Opcode
	Size   int
	Args   [MaxArgs]Arg
}

// Set populates the descriptor.
func (c *Command) Set(op Opcode, args ...Arg) error {
	if len(args) > MaxArgs {
		return ErrTooManyArgs
	}
	c.Reset()
	c.Opcode, c.Size = op, len(args)
	copy(c.Args[:], args)
	return nil
}

// Arg returns the n-th argument, or a zero Arg when unused.
func (c *Command) Arg(n int) Arg {
	if n < 0 || n >= c.Size {
		return Arg{}
	}
	return c.Args[n]
}

// Reset clears the descriptor.
func (c *Command) Reset() {
	*c = Command{}
}

// Response is the response descriptor. Words[0] holds the status.
type Response struct {
	Opcode Opcode
	Size   int
	Words  [MaxArgs]uint32
}

// NewResponse creates a Response with status and optional extra words.
// Extra words beyond MaxArgs-1 are dropped.
func NewResponse(op Opcode, status Status, values ...uint32) Response {
	rsp := Response{Opcode: op, Size: 1}
	rsp.Words[0] = uint32(status)
	rsp.Size += copy(rsp.Words[1:], values)
	return rsp
}

// Status gets the status from slot 0.
func (r Response) Status() Status {
	return Status(r.Words[0])
}

// Values returns the words after the status.
func (r Response) Values() []uint32 {
	if r.Size <= 1 {
		return nil
	}
	return r.Words[1:r.Size]
}
