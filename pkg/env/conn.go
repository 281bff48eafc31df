package env

import (
	"context"
	"fmt"
	"log"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/link/mqtt"
	"github.com/robotalks/mbox.go/pkg/link/stream"
	"github.com/robotalks/mbox.go/pkg/link/websocket"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Conn is a connection to a peer. Calls from multiple goroutines are
// served in FIFO order.
type Conn struct {
	*mailbox.Serial

	Ref    link.PeerRef
	Local  *PeerEnv
	cancel func()
	runner *fx.Runner
}

// Dial connects to the peer using current config.
func (c *Config) Dial(ctx context.Context) (*Conn, error) {
	scheme, u, err := c.parseLinkURL()
	if err != nil {
		return nil, err
	}
	var (
		caller    mailbox.Caller
		local     *PeerEnv
		runnables []fx.Runnable
	)
	switch scheme {
	case LinkLocal:
		local = newLocalPeer(c)
		caller, runnables = local.Mailbox, []fx.Runnable{local.Peer}
	case "tcp", "unix":
		client, err := stream.Dial(ctx, scheme, streamAddress(u))
		if err != nil {
			return nil, err
		}
		client.Timeout = c.Timeout
		caller, runnables = client, []fx.Runnable{client}
	case "ws", "wss":
		client, err := websocket.Dial(c.LinkURL)
		if err != nil {
			return nil, err
		}
		client.Timeout = c.Timeout
		caller, runnables = client, []fx.Runnable{client}
	case "mqtt":
		if !c.Info.Ref.IsValid() {
			return nil, fmt.Errorf("peer type and id must be specified")
		}
		connector, err := mqtt.NewConnector(c.LinkURL)
		if err != nil {
			return nil, err
		}
		mc, err := connector.Dial(ctx, c.Info.Ref)
		if err != nil {
			return nil, err
		}
		mc.Client.Timeout = c.Timeout
		caller, runnables = mc, []fx.Runnable{mc}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		Serial: mailbox.NewSerial(caller),
		Ref:    c.Info.Ref,
		Local:  local,
		cancel: cancel,
		runner: fx.NewRunnerWith(runCtx).Go(runnables...),
	}
	return conn, nil
}

// MustDial connects to the peer and fails on error.
func (c *Config) MustDial(ctx context.Context) *Conn {
	conn, err := c.Dial(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Close disconnects from the peer.
func (c *Conn) Close() error {
	c.cancel()
	return c.runner.Wait()
}

// Discover lists peers announced on the mqtt link.
func (c *Config) Discover(ctx context.Context) ([]link.PeerInfo, error) {
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Discover(ctx)
}
