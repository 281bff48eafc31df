package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Caller performs a complete command/response exchange.
type Caller interface {
	Call(context.Context, *Command) (Response, error)
}

// CallFunc is the func form of Caller.
type CallFunc func(context.Context, *Command) (Response, error)

// Call implements Caller.
func (f CallFunc) Call(ctx context.Context, cmd *Command) (Response, error) {
	return f(ctx, cmd)
}

// Phase is the lifecycle phase of a Call.
type Phase int

// Phases of a Call.
const (
	PhaseIdle Phase = iota
	PhaseAcquired
	PhaseWritten
	PhaseTransferring
	PhaseCompleted
	PhaseAbandoned
)

var phaseNames = [...]string{"idle", "acquired", "written", "transferring", "completed", "abandoned"}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Mailbox is the single-slot request/response channel pair.
type Mailbox struct {
	// Timeout bounds Transfer. Zero waits until the peer replies
	// or the context is done.
	Timeout time.Duration

	req      Command
	rsp      Response
	reqReady chan struct{}
	rspReady chan struct{}

	lock  sync.Mutex
	owner *Call
	taken bool
	stale bool
}

// Call is the exclusive ownership of the request slot for one exchange.
type Call struct {
	mbox  *Mailbox
	phase Phase
}

// New creates a Mailbox.
func New() *Mailbox {
	return &Mailbox{
		reqReady: make(chan struct{}, 1),
		rspReady: make(chan struct{}, 1),
	}
}

// WithTimeout sets Timeout.
func (m *Mailbox) WithTimeout(d time.Duration) *Mailbox {
	m.Timeout = d
	return m
}

// Acquire takes exclusive ownership of the request slot.
func (m *Mailbox) Acquire() (*Call, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.owner != nil {
		return nil, ErrBusy
	}
	c := &Call{mbox: m, phase: PhaseAcquired}
	m.owner = c
	m.req.Reset()
	m.rsp = Response{}
	return c, nil
}

// Busy indicates a call owns the mailbox.
func (m *Mailbox) Busy() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.owner != nil
}

// Call implements Caller.
func (m *Mailbox) Call(ctx context.Context, cmd *Command) (Response, error) {
	c, err := m.Acquire()
	if err != nil {
		return Response{}, err
	}
	defer c.Release()
	if err = c.WriteCommand(cmd); err != nil {
		return Response{}, err
	}
	if err = c.Transfer(ctx); err != nil {
		return Response{}, err
	}
	return c.Read()
}

// Port returns the peer side of the mailbox.
func (m *Mailbox) Port() *Port {
	return &Port{mbox: m}
}

// Phase gets the current phase.
func (c *Call) Phase() Phase {
	c.mbox.lock.Lock()
	defer c.mbox.lock.Unlock()
	return c.phase
}

// Write populates the request slot.
func (c *Call) Write(op Opcode, args ...Arg) error {
	var cmd Command
	if err := cmd.Set(op, args...); err != nil {
		return err
	}
	return c.WriteCommand(&cmd)
}

// WriteCommand copies cmd into the request slot.
// Buffers are shared, not copied, so the peer writes outputs in place.
func (c *Call) WriteCommand(cmd *Command) error {
	if cmd.Size < 0 || cmd.Size > MaxArgs {
		return ErrTooManyArgs
	}
	m := c.mbox
	m.lock.Lock()
	defer m.lock.Unlock()
	if c.phase != PhaseAcquired && c.phase != PhaseWritten {
		return ErrNotWritten
	}
	m.req = *cmd
	c.phase = PhaseWritten
	return nil
}

// Transfer signals the peer and blocks until the peer signals back.
func (c *Call) Transfer(ctx context.Context) error {
	m := c.mbox
	m.lock.Lock()
	if c.phase != PhaseWritten {
		m.lock.Unlock()
		return ErrNotWritten
	}
	c.phase = PhaseTransferring
	m.lock.Unlock()

	// the slot has a single owner, so the signal buffer is always empty here.
	m.reqReady <- struct{}{}

	var timeout <-chan time.Time
	if m.Timeout > 0 {
		timer := time.NewTimer(m.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case <-m.rspReady:
		m.lock.Lock()
		c.phase = PhaseCompleted
		m.lock.Unlock()
		return nil
	case <-timeout:
		err = ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	return c.abandon(err)
}

func (c *Call) abandon(err error) error {
	m := c.mbox
	m.lock.Lock()
	defer m.lock.Unlock()
	select {
	case <-m.rspReady:
		c.phase = PhaseCompleted
		return nil
	default:
	}
	c.phase = PhaseAbandoned
	select {
	case <-m.reqReady:
		// never taken by the peer.
		m.owner = nil
	default:
		// the peer owns the slots until it replies.
		m.stale = true
		glog.Warningf("mailbox: opcode %x abandoned in peer: %v", uint32(m.req.Opcode), err)
	}
	return err
}

// Read returns the response. It's only valid after Transfer succeeded.
func (c *Call) Read() (Response, error) {
	m := c.mbox
	m.lock.Lock()
	defer m.lock.Unlock()
	if c.phase != PhaseCompleted {
		return Response{}, ErrNotReady
	}
	return m.rsp, nil
}

// Release gives up the ownership.
// An abandoned call keeps the mailbox busy until the peer replies.
func (c *Call) Release() {
	m := c.mbox
	m.lock.Lock()
	defer m.lock.Unlock()
	switch c.phase {
	case PhaseTransferring:
		return
	case PhaseAbandoned:
		c.phase = PhaseIdle
		return
	}
	c.phase = PhaseIdle
	if m.owner == c {
		m.owner = nil
	}
}

// Port is the peer side of a Mailbox.
// Only one peer context may receive from a Port.
type Port struct {
	mbox *Mailbox
}

// Receive waits for a request and returns a copy of the request slot.
func (p *Port) Receive(ctx context.Context) (Command, error) {
	m := p.mbox
	select {
	case <-m.reqReady:
	case <-ctx.Done():
		return Command{}, ctx.Err()
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.taken = true
	return m.req, nil
}

// Reply writes the response slot and signals the caller.
func (p *Port) Reply(rsp Response) error {
	m := p.mbox
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.owner == nil || !m.taken {
		return ErrNoRequest
	}
	m.taken = false
	if m.stale {
		glog.V(2).Infof("mailbox: discard late response opcode %x status %s", uint32(rsp.Opcode), rsp.Status())
		m.stale = false
		m.owner = nil
		return nil
	}
	m.rsp = rsp
	m.rspReady <- struct{}{}
	return nil
}
