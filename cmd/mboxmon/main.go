package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/link/mqtt"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

var (
	mqttURL = "mqtt://localhost:1883/mbox/"
)

func init() {
	if val := os.Getenv("MBOX_LINK_URL"); strings.HasPrefix(val, "mqtt:") {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func formatFrame(f *link.Frame) string {
	var w bytes.Buffer
	if f.Reply {
		fmt.Fprintf(&w, "RSP #%d op=%08x", f.Seq, uint32(f.Opcode))
		if len(f.Args) > 0 {
			fmt.Fprintf(&w, " status=%s", mailbox.Status(f.Args[0].Word))
		}
	} else {
		fmt.Fprintf(&w, "REQ #%d op=%08x", f.Seq, uint32(f.Opcode))
	}
	for n, arg := range f.Args {
		if f.Reply && n == 0 {
			continue
		}
		switch {
		case arg.Kind == mailbox.ArgWord || (arg.Kind == mailbox.ArgOutput && !f.Reply):
			fmt.Fprintf(&w, " %s:%d", arg.Kind, arg.Word)
		default:
			fmt.Fprintf(&w, " %s:%x", arg.Kind, arg.Buf)
		}
	}
	return w.String()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.ConnectAndWait(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.TopicMeta) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		f, err := link.DecodeFrame(payload)
		if err != nil {
			log.Printf("%s: bad frame: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, formatFrame(f))
	}))
	<-(chan struct{})(nil)
}
