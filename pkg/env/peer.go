package env

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mbox.go/pkg/attest"
	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link/mqtt"
	"github.com/robotalks/mbox.go/pkg/link/stream"
	"github.com/robotalks/mbox.go/pkg/link/websocket"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// PeerEnv hosts the emulated radio core: a mailbox served by the
// attestation service, shared through a Serial and exposed on the link.
type PeerEnv struct {
	Config  *Config
	Mailbox *mailbox.Mailbox
	Service *attest.Service
	Peer    *mailbox.Peer
	Serial  *mailbox.Serial

	server fx.LoopAdder
}

// NewPeerEnv creates a PeerEnv from config.
func (c *Config) NewPeerEnv() (*PeerEnv, error) {
	scheme, u, err := c.parseLinkURL()
	if err != nil {
		return nil, err
	}
	e := newLocalPeer(c)
	switch scheme {
	case "tcp", "unix":
		e.server = runnableAdder{stream.NewListener(scheme, streamAddress(u), e.Serial)}
	case "ws", "wss":
		e.server = runnableAdder{&wsServer{addr: u.Host, path: u.Path, caller: e.Serial}}
	case "mqtt":
		a, err := mqtt.NewAnnouncer(c.LinkURL, c.Info, e.Serial)
		if err != nil {
			return nil, err
		}
		e.server = a
	}
	return e, nil
}

func newLocalPeer(c *Config) *PeerEnv {
	e := &PeerEnv{
		Config:  c,
		Mailbox: mailbox.New().WithTimeout(c.Timeout),
		Service: attest.NewService(),
	}
	e.Peer = mailbox.NewPeer(e.Mailbox.Port(), e.Service.Handler())
	e.Serial = mailbox.NewSerial(e.Mailbox)
	return e
}

// AddToLoop implements LoopAdder.
func (e *PeerEnv) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Peer)
	if e.server != nil {
		loop.Add(e.server)
	}
}

type runnableAdder struct {
	fx.Runnable
}

func (r runnableAdder) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(r.Runnable)
}

type wsServer struct {
	addr   string
	path   string
	caller mailbox.Caller
}

func (s *wsServer) Name() string {
	return "websocket-server"
}

func (s *wsServer) Run(ctx context.Context) error {
	path := s.path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(ctx, s.caller))
	server := &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	glog.Infof("websocket listening on %s%s", s.addr, path)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

// MustNewPeerEnv creates PeerEnv and fails on error.
func (c *Config) MustNewPeerEnv() *PeerEnv {
	e, err := c.NewPeerEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}
