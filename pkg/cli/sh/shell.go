package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mbox.go/pkg/env"
	"github.com/robotalks/mbox.go/pkg/link"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *env.Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// CallerFrom gets the connected Caller.
func CallerFrom(c *ishell.Context) mailbox.Caller {
	return ShellFrom(c).Conn
}

// FormatInfo prints PeerInfo into friendly string for display.
func FormatInfo(info link.PeerInfo) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", info.Ref.Name())
	if info.Meta.Description != "" {
		fmt.Fprintf(&w, ": %s", info.Meta.Description)
	}
	return w.String()
}

type statusOutput struct {
	Status string `json:"status"`
	Code   uint32 `json:"code"`
	Error  string `json:"error,omitempty"`
}

func statusJSON(status mailbox.Status, err error) ([]byte, error) {
	out := statusOutput{Status: status.String(), Code: uint32(status)}
	if err != nil {
		out.Error = err.Error()
	}
	return json.Marshal(&out)
}

// PrintStatus prints the result of an operation.
// It returns false unless status is success.
func PrintStatus(c *ishell.Context, status mailbox.Status, err error) bool {
	if ShellFrom(c).OutputJSON {
		data, jsonErr := statusJSON(status, err)
		if jsonErr != nil {
			c.Err(jsonErr)
			return false
		}
		c.Println(string(data))
		return err == nil && status.OK()
	}
	if err != nil {
		c.Err(fmt.Errorf("%s: %v", status, err))
		return false
	}
	if !status.OK() {
		c.Err(&mailbox.StatusError{Status: status})
		return false
	}
	c.Println("OK")
	return true
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// DiscoverPeers discovers peers.
func (s *Shell) DiscoverPeers(filter func(link.PeerInfo) bool) ([]link.PeerInfo, error) {
	infoList, err := s.Config.Discover(context.TODO())
	if err != nil {
		return nil, err
	}
	if filter != nil {
		items := make([]link.PeerInfo, 0, len(infoList))
		for _, info := range infoList {
			if filter(info) {
				items = append(items, info)
			}
		}
		infoList = items
	}
	return infoList, nil
}

// SelectPeer discovers peers and asks for a choice.
func (s *Shell) SelectPeer(filter func(link.PeerInfo) bool) (*link.PeerInfo, error) {
	infoList, err := s.DiscoverPeers(filter)
	if err != nil {
		return nil, err
	}
	if len(infoList) == 0 {
		return nil, nil
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 peers discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &infoList[index], nil
}

// Connect connects the peer with ref.
func (s *Shell) Connect(ref link.PeerRef) error {
	conf := *s.Config
	conf.Info.Ref = ref
	conn, err := conf.Dial(context.TODO())
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", ref.Name()))
	return nil
}

// Disconnect disconnects current peer.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Info.Ref.IsValid() {
		ref := s.Config.Info.Ref
		if s.Interactive {
			s.Shell.Printf("Connecting %s via %s ...\n", ref.Name(), s.Config.LinkURL)
		}
		if err := s.Connect(ref); err != nil {
			log.Fatalf("connect %q failed: %v", ref.Name(), err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers peers.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.DiscoverPeers(nil)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					infoList = []link.PeerInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No peers found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a peer.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE [ID]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ref := s.Config.Info.Ref
			switch {
			case len(c.Args) >= 2:
				ref.Type, ref.ID = c.Args[0], c.Args[1]
			case len(c.Args) == 1 && s.Config.LinkURL != env.LinkLocal:
				info, err := s.SelectPeer(func(info link.PeerInfo) bool {
					return info.Ref.Type == c.Args[0]
				})
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no peer discovered"))
					return
				}
				ref = info.Ref
			}
			if err := s.Connect(ref); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current peer.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
