package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/robotalks/mbox.go/pkg/link"
)

// Topic suffixes under <type>/<id>/.
const (
	TopicRequest  = "req"
	TopicResponse = "rsp"
	TopicMeta     = "meta"
)

// ReadWriter implements link.PacketReadWriter over a pair of topics.
// Packets are received once SubTopic is subscribed, either by Subscribe
// or by Run.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	sub      *Subscription
	subOnce  sync.Once
	packetCh chan []byte
	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, 1),
		doneCh:   make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForClient sets topics for the calling side:
// SubTopic = type/id/rsp
// PubTopic = type/id/req
func (p *ReadWriter) ForClient(ref link.PeerRef) *ReadWriter {
	prefix := ref.Name() + "/"
	return p.WithTopics(prefix+TopicResponse, prefix+TopicRequest)
}

// ForPeer sets topics for the serving side:
// SubTopic = type/id/req
// PubTopic = type/id/rsp
func (p *ReadWriter) ForPeer(ref link.PeerRef) *ReadWriter {
	prefix := ref.Name() + "/"
	return p.WithTopics(prefix+TopicRequest, prefix+TopicResponse)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close stops ReadPacket.
func (p *ReadWriter) Close() error {
	p.doneOnce.Do(func() { close(p.doneCh) })
	return nil
}

// Name implements Named.
func (p *ReadWriter) Name() string {
	return "mqtt:" + p.SubTopic
}

// Subscribe subscribes SubTopic once and waits for the broker to
// acknowledge it. If the Queue is not connected yet, the topic is
// subscribed when the connection is established.
func (p *ReadWriter) Subscribe() error {
	p.subOnce.Do(func() {
		p.sub = p.Queue.Sub(p.SubTopic, p.handleMsg)
	})
	p.sub.Token.Wait()
	return p.sub.Token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	if err := p.Subscribe(); err != nil {
		return err
	}
	defer p.sub.Close()
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneCh:
		return nil
	}
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	}
}
