package websocket

import (
	"context"
	"net/http"
	"net/url"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// ReadWriter implements link.PacketReadWriter with one binary
// message per packet.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Dial connects to a peer served by Handler, wsURL is like ws://host:port/path.
// The caller must run the client.
func Dial(wsURL string) (*link.Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	conn, err := websocket.Dial(u.String(), "", origin.String())
	if err != nil {
		return nil, err
	}
	return link.NewClient(New(conn)), nil
}

// Handler serves each websocket connection with a link.Server.
func Handler(ctx context.Context, caller mailbox.Caller) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		glog.V(1).Infof("websocket accepted %s", conn.Request().RemoteAddr)
		err := link.NewServer(New(conn), caller).Run(ctx)
		glog.V(1).Infof("websocket disconnected %s: %v", conn.Request().RemoteAddr, err)
	})
}
