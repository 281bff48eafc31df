package env

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/link/mqtt"
)

// LinkLocal runs the peer in the same process.
const LinkLocal = "local"

// Config provides common options to reach or host a mailbox peer.
type Config struct {
	Info link.PeerInfo

	// LinkURL specifies how the peer is reached, one of
	//   local
	//   tcp://host:port
	//   unix:///path/to/socket
	//   ws://host:port/path
	//   mqtt://host:port/topic-prefix
	LinkURL string

	// Timeout bounds a single exchange.
	Timeout time.Duration
}

var defaultConfig = Config{
	Info:    link.PeerInfo{Ref: link.PeerRef{Type: "attest"}},
	LinkURL: LinkLocal,
	Timeout: link.DefaultTimeout,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
	if defaultConfig.Info.Ref.ID == "" {
		defaultConfig.Info.Ref.ID = MachineID()
	}
}

func loadEnv(conf *Config, getenv func(string) string) {
	if val := getenv("MBOX_LINK_URL"); val != "" {
		conf.LinkURL = val
	}
	if val := getenv("MBOX_PEER_TYPE"); val != "" {
		conf.Info.Ref.Type = val
	}
	if val := getenv("MBOX_PEER_ID"); val != "" {
		conf.Info.Ref.ID = val
	}
	if val := getenv("MBOX_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			conf.Timeout = d
		}
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Link URL: local, tcp://, unix://, ws://, mqtt://")
	flag.StringVar(&defaultConfig.Info.Ref.Type, "peer-type", defaultConfig.Info.Ref.Type, "Peer type")
	flag.StringVar(&defaultConfig.Info.Ref.ID, "peer-id", defaultConfig.Info.Ref.ID, "Peer ID")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Timeout of a single exchange")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetPeerMeta should be called in init with the description of the peer.
func SetPeerMeta(meta link.PeerMeta) {
	defaultConfig.Info.Meta = meta
}

// parseLinkURL returns the scheme and the parsed URL, nil for local.
func (c *Config) parseLinkURL() (string, *url.URL, error) {
	if c.LinkURL == "" || c.LinkURL == LinkLocal {
		return LinkLocal, nil, nil
	}
	u, err := url.Parse(c.LinkURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid link URL: %v", err)
	}
	switch u.Scheme {
	case "tcp", "unix", "ws", "wss", "mqtt":
		return u.Scheme, u, nil
	}
	return "", nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
}

// streamAddress gets the address for net.Dial/net.Listen.
func streamAddress(u *url.URL) string {
	if u.Scheme == "unix" {
		return u.Host + u.Path
	}
	return u.Host
}

// NewConnector creates a MQTT Connector for discovery.
func (c *Config) NewConnector() (*mqtt.Connector, error) {
	scheme, _, err := c.parseLinkURL()
	if err != nil {
		return nil, err
	}
	if scheme != "mqtt" {
		return nil, fmt.Errorf("discovery requires a mqtt link, got %q", scheme)
	}
	return mqtt.NewConnector(c.LinkURL)
}
