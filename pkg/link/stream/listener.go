package stream

import (
	"context"
	"net"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Dial connects to a listening peer and returns a link.Client.
// The caller must run the client.
func Dial(ctx context.Context, network, address string) (*link.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return link.NewClient(New(conn)), nil
}

// Listener accepts stream connections and serves each with a link.Server.
// All connections share the same Caller.
type Listener struct {
	Network string
	Address string
	Caller  mailbox.Caller

	listener net.Listener
	lock     sync.Mutex
}

// NewListener creates a Listener.
func NewListener(network, address string, caller mailbox.Caller) *Listener {
	return &Listener{Network: network, Address: address, Caller: caller}
}

// Name implements Named.
func (l *Listener) Name() string {
	return "stream-listener:" + l.Network
}

// Listen starts listening, it's optional before Run.
func (l *Listener) Listen() (net.Addr, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.listener == nil {
		ln, err := net.Listen(l.Network, l.Address)
		if err != nil {
			return nil, err
		}
		l.listener = ln
	}
	return l.listener.Addr(), nil
}

// Run implements Runnable.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := l.Listen()
	if err != nil {
		return err
	}
	glog.Infof("listening on %s %s", addr.Network(), addr.String())
	var wg sync.WaitGroup
	defer wg.Wait()
	return fx.RunWithContextCloser(ctx, l.listener, func() error {
		for {
			conn, err := l.listener.Accept()
			if err != nil {
				return err
			}
			glog.V(1).Infof("accepted %s", conn.RemoteAddr())
			wg.Add(1)
			go func(conn net.Conn) {
				defer wg.Done()
				err := link.NewServer(New(conn), l.Caller).Run(ctx)
				glog.V(1).Infof("disconnected %s: %v", conn.RemoteAddr(), err)
			}(conn)
		}
	})
}
