package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Announcer serves a mailbox peer through MQTT and announces it with a
// retained meta message. The broker clears the announcement when the
// connection is lost.
type Announcer struct {
	Queue      *Queue
	Info       link.PeerInfo
	ReadWriter *ReadWriter
	Server     *link.Server

	metaJSON []byte
}

// NewAnnouncer creates an Announcer forwarding requests to caller.
func NewAnnouncer(brokerURL string, info link.PeerInfo, caller mailbox.Caller) (*Announcer, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := info.Ref.Name() + "/" + TopicMeta
	opts.SetBinaryWill(topicPrefix+metaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("mbox:" + info.Ref.Name())
	}
	a := &Announcer{
		Queue:    NewQueue(opts, topicPrefix),
		Info:     info,
		metaJSON: meta,
	}
	a.Queue.OnConnect = func(*Queue) { a.announce() }
	a.ReadWriter = NewPacketReadWriter(a.Queue).ForPeer(info.Ref)
	a.Server = link.NewServer(a.ReadWriter, caller)
	return a, nil
}

// Name implements Named.
func (a *Announcer) Name() string {
	return "mqtt-announcer:" + a.Info.Ref.Name()
}

// AddToLoop implements LoopAdder.
func (a *Announcer) AddToLoop(loop *fx.Loop) {
	loop.Add(a.Server)
	loop.AddRunnable(a)
}

// Run implements Runnable.
// The request topic is registered before connecting, so the peer is
// announced only after it is subscribed.
func (a *Announcer) Run(ctx context.Context) error {
	if err := a.ReadWriter.Subscribe(); err != nil {
		return err
	}
	if err := fx.RunWithContextCancel(ctx, func() { a.Queue.Close() }, a.Queue.ConnectAndWait); err != nil {
		return err
	}
	<-ctx.Done()
	token := a.Queue.PubWith(a.Info.Ref.Name()+"/"+TopicMeta, nil, 1, true)
	token.Wait()
	a.Queue.Close()
	return ctx.Err()
}

func (a *Announcer) announce() {
	glog.Infof("announce %s", a.Info.Ref.Name())
	a.Queue.PubWith(a.Info.Ref.Name()+"/"+TopicMeta, a.metaJSON, 1, true)
}
