package main

//go-build: CGO_ENABLED=0

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mbox.go/pkg/attest"
	"github.com/robotalks/mbox.go/pkg/env"
	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/link"
)

var (
	delay       time.Duration
	privateKey  string
	factoryData string
)

func init() {
	env.SetPeerMeta(link.PeerMeta{Description: "Emulated radio core: attestation key store"})
	env.SetupFlags()
	flag.DurationVar(&delay, "delay", delay, "Artificial delay before each reply")
	flag.StringVar(&privateKey, "key", privateKey, "Provision the private key (hex) at start")
	flag.StringVar(&factoryData, "factory-data", factoryData, "Provision the DAC key from a factory data file at start")
}

func provisionKey() ([]byte, error) {
	switch {
	case privateKey != "" && factoryData != "":
		return nil, fmt.Errorf("-key and -factory-data are exclusive")
	case privateKey != "":
		return hex.DecodeString(privateKey)
	case factoryData != "":
		d, err := attest.LoadFactoryData(factoryData)
		if err != nil {
			return nil, err
		}
		return d.DeviceAttestationKey()
	}
	return nil, nil
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	if conf.LinkURL == env.LinkLocal {
		log.Fatalln("a link URL is required, e.g. -link=tcp://:7700")
	}
	peerEnv := conf.MustNewPeerEnv()
	peerEnv.Peer.Delay = delay
	key, err := provisionKey()
	if err != nil {
		log.Fatalf("invalid key: %v", err)
	}
	if key != nil {
		if err = peerEnv.Service.SetPrivateKey(key); err != nil {
			log.Fatalf("provision key: %v", err)
		}
	}
	glog.Infof("peer %s serving on %s", conf.Info.Ref.Name(), conf.LinkURL)
	fx.NewLoop().Add(peerEnv).RunOrFail()
}
