package mailbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
)

// Handler processes a command on the peer side.
type Handler interface {
	HandleCommand(context.Context, *Command) Response
}

// HandleCommandFunc is the func form of Handler.
type HandleCommandFunc func(context.Context, *Command) Response

// HandleCommand implements Handler.
func (f HandleCommandFunc) HandleCommand(ctx context.Context, cmd *Command) Response {
	return f(ctx, cmd)
}

// Mux dispatches commands by opcode.
type Mux struct {
	handlers map[Opcode]Handler
	lock     sync.RWMutex
}

// NewMux creates a Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[Opcode]Handler)}
}

// Handle registers the handler for op.
func (m *Mux) Handle(op Opcode, h Handler) *Mux {
	m.lock.Lock()
	m.handlers[op] = h
	m.lock.Unlock()
	return m
}

// HandleFunc registers the func handler for op.
func (m *Mux) HandleFunc(op Opcode, fn func(context.Context, *Command) Response) *Mux {
	return m.Handle(op, HandleCommandFunc(fn))
}

// HandleCommand implements Handler.
func (m *Mux) HandleCommand(ctx context.Context, cmd *Command) Response {
	m.lock.RLock()
	h := m.handlers[cmd.Opcode]
	m.lock.RUnlock()
	if h == nil {
		return NewResponse(cmd.Opcode, StatusUnsupported)
	}
	return h.HandleCommand(ctx, cmd)
}

// Peer runs the peer context: it waits for requests and replies.
type Peer struct {
	Port    *Port
	Handler Handler
	// Delay is added before each reply, useful to emulate a slow core.
	Delay time.Duration

	served   uint64
	failed   uint64
	reported uint64
}

// NewPeer creates a Peer.
func NewPeer(port *Port, h Handler) *Peer {
	return &Peer{Port: port, Handler: h}
}

// Name implements Named.
func (p *Peer) Name() string {
	return "mailbox-peer"
}

// Served returns the number of commands replied.
func (p *Peer) Served() uint64 {
	return atomic.LoadUint64(&p.served)
}

// Failed returns the number of commands replied with non-success status.
func (p *Peer) Failed() uint64 {
	return atomic.LoadUint64(&p.failed)
}

// Run implements Runnable.
func (p *Peer) Run(ctx context.Context) error {
	for {
		cmd, err := p.Port.Receive(ctx)
		if err != nil {
			return err
		}
		rsp := p.Handler.HandleCommand(ctx, &cmd)
		rsp.Opcode = cmd.Opcode
		if rsp.Size == 0 {
			rsp.Size = 1
		}
		if p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
			}
		}
		if err = p.Port.Reply(rsp); err != nil {
			glog.Errorf("mailbox: reply opcode %x error: %v", uint32(cmd.Opcode), err)
			continue
		}
		atomic.AddUint64(&p.served, 1)
		if !rsp.Status().OK() {
			atomic.AddUint64(&p.failed, 1)
		}
		glog.V(2).Infof("mailbox: opcode %x -> %s", uint32(cmd.Opcode), rsp.Status())
	}
}

// AddToLoop implements LoopAdder.
func (p *Peer) AddToLoop(l *fx.Loop) {
	l.AddRunnable(p)
	l.AddController(fx.PrLvIdle, fx.ControlFunc(p.reportStats))
}

func (p *Peer) reportStats(cc fx.ControlContext) error {
	served := p.Served()
	if served != p.reported {
		p.reported = served
		glog.Infof("mailbox: served %d commands, %d failed", served, p.Failed())
	}
	return nil
}
