package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link"
)

// Connector finds and connects peers through a MQTT broker.
type Connector struct {
	DiscoverTimeout time.Duration

	options     *paho.ClientOptions
	topicPrefix string
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		options:         opts,
		topicPrefix:     topicPrefix,
	}, nil
}

// Discover collects the announced peers until DiscoverTimeout.
func (c *Connector) Discover(ctx context.Context) ([]link.PeerInfo, error) {
	q := NewQueue(c.options, c.topicPrefix)
	if err := q.ConnectAndWait(); err != nil {
		return nil, err
	}
	defer q.Close()
	collector := newPeerCollector()
	sub := q.Sub("+/+/"+TopicMeta, collector.handleMeta)
	if sub.Token.Wait(); sub.Token.Error() != nil {
		return nil, sub.Token.Error()
	}

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	select {
	case <-time.After(dur):
		return collector.result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dial connects to the peer of ref. The reply topic is subscribed
// before Dial returns.
func (c *Connector) Dial(ctx context.Context, ref link.PeerRef) (*Conn, error) {
	q := NewQueue(c.options, c.topicPrefix)
	conn := &Conn{
		Queue:      q,
		ReadWriter: NewPacketReadWriter(q).ForClient(ref),
	}
	conn.Client = link.NewClient(conn.ReadWriter)
	err := fx.RunWithContextCancel(ctx, func() { q.Close() }, func() error {
		if err := q.ConnectAndWait(); err != nil {
			return err
		}
		return conn.ReadWriter.Subscribe()
	})
	if err != nil {
		q.Close()
		return nil, err
	}
	return conn, nil
}

// Conn is a client connection through MQTT.
type Conn struct {
	*link.Client
	Queue      *Queue
	ReadWriter *ReadWriter
}

// AddToLoop implements LoopAdder.
func (c *Conn) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(c.ReadWriter, c.Client)
}

// Run runs the ReadWriter and the Client until ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	defer c.Queue.Close()
	return fx.NewRunnerWith(ctx).Go(c.ReadWriter, c.Client).Wait()
}

// Close disconnects from the broker.
func (c *Conn) Close() error {
	c.ReadWriter.Close()
	return c.Queue.Close()
}

type peerCollector struct {
	peers map[string]link.PeerInfo
	order []string
	lock  sync.Mutex
}

func newPeerCollector() *peerCollector {
	return &peerCollector{peers: make(map[string]link.PeerInfo)}
}

func (c *peerCollector) handleMeta(topic string, payload []byte) {
	info, ok := parseMeta(topic, payload)
	if !ok {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	name := info.Ref.Name()
	if _, exist := c.peers[name]; !exist {
		c.order = append(c.order, name)
	}
	c.peers[name] = info
}

func (c *peerCollector) result() []link.PeerInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	res := make([]link.PeerInfo, 0, len(c.order))
	for _, name := range c.order {
		res = append(res, c.peers[name])
	}
	return res
}

// parseMeta parses a retained announcement. An empty payload clears it.
func parseMeta(topic string, payload []byte) (info link.PeerInfo, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[2] != TopicMeta || len(payload) == 0 {
		return
	}
	info.Ref = link.PeerRef{Type: items[0], ID: items[1]}
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.Warningf("mqtt: bad meta of %s: %v", info.Ref.Name(), err)
	}
	return info, info.Ref.IsValid()
}
