package link

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Client implements mailbox.Caller over a PacketReadWriter.
// Like a Mailbox it carries one request at a time. Run must be running
// to receive replies.
//
// Several clients may share one reply channel (e.g. a MQTT topic), so a
// reply is accepted only when its origin, seq and opcode all match the
// pending request.
type Client struct {
	ReadWriter PacketReadWriter
	Timeout    time.Duration

	origin  uint64
	seq     uint32
	pending *pendingCall
	busy    bool
	lock    sync.Mutex
}

type pendingCall struct {
	seq     uint32
	opcode  mailbox.Opcode
	replyCh chan *Frame
}

// DefaultTimeout is the default time to wait for a reply.
const DefaultTimeout = 2 * time.Second

// NewClient creates a Client.
func NewClient(rw PacketReadWriter) *Client {
	return &Client{ReadWriter: rw, Timeout: DefaultTimeout}
}

// Name implements Named.
func (c *Client) Name() string {
	return "link-client"
}

// Call implements mailbox.Caller.
func (c *Client) Call(ctx context.Context, cmd *mailbox.Command) (mailbox.Response, error) {
	c.lock.Lock()
	if c.busy {
		c.lock.Unlock()
		return mailbox.Response{}, mailbox.ErrBusy
	}
	c.busy = true
	if c.origin == 0 {
		c.origin, c.seq = newOrigin()
	}
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	call := &pendingCall{seq: c.seq, opcode: cmd.Opcode, replyCh: make(chan *Frame, 1)}
	c.pending = call
	origin := c.origin
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		c.pending, c.busy = nil, false
		c.lock.Unlock()
	}()

	req := RequestFrame(call.seq, cmd)
	req.Origin = origin
	pkt, err := req.Encode()
	if err != nil {
		return mailbox.Response{}, err
	}
	if err = c.ReadWriter.WritePacket(pkt); err != nil {
		return mailbox.Response{}, err
	}

	var timeout <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case f := <-call.replyCh:
		return f.Response(cmd)
	case <-timeout:
		return mailbox.Response{}, mailbox.ErrTimeout
	case <-ctx.Done():
		return mailbox.Response{}, ctx.Err()
	}
}

// Run implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, closerOf(c.ReadWriter), func() error {
		for {
			pkt, err := c.ReadWriter.ReadPacket()
			if err != nil {
				return err
			}
			f, err := DecodeFrame(pkt)
			if err != nil {
				glog.Warningf("link: drop bad packet: %v", err)
				continue
			}
			c.deliver(f)
		}
	})
}

func (c *Client) deliver(f *Frame) {
	if !f.Reply {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if f.Origin != c.origin {
		glog.V(3).Infof("link: skip reply of origin %x", f.Origin)
		return
	}
	if c.pending == nil || c.pending.seq != f.Seq || c.pending.opcode != f.Opcode {
		glog.V(2).Infof("link: drop stale reply seq %d opcode %x", f.Seq, uint32(f.Opcode))
		return
	}
	c.pending.replyCh <- f
	c.pending = nil
}

// newOrigin returns a random non-zero origin and initial seq.
func newOrigin() (uint64, uint32) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		glog.Warningf("link: random origin: %v", err)
		return uint64(time.Now().UnixNano()) | 1, 0
	}
	origin := binary.LittleEndian.Uint64(b[:8])
	if origin == 0 {
		origin = 1
	}
	return origin, binary.LittleEndian.Uint32(b[8:])
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func closerOf(rw interface{}) io.Closer {
	if closer, ok := rw.(io.Closer); ok {
		return closer
	}
	return nopCloser{}
}

// AddToLoop implements LoopAdder.
func (c *Client) AddToLoop(loop *fx.Loop) {
	addReadWriter(loop, c.ReadWriter)
	loop.AddRunnable(c)
}

func addReadWriter(loop *fx.Loop, rw PacketReadWriter) {
	if adder, ok := rw.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := rw.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
}
