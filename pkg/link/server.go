package link

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/mbox.go/pkg/framework"
	"github.com/robotalks/mbox.go/pkg/mailbox"
)

// Server reads request frames from a PacketReadWriter and forwards the
// commands to a Caller, usually a Serial over a local Mailbox.
type Server struct {
	ReadWriter PacketReadWriter
	Caller     mailbox.Caller

	served uint64
}

// NewServer creates a Server.
func NewServer(rw PacketReadWriter, caller mailbox.Caller) *Server {
	return &Server{ReadWriter: rw, Caller: caller}
}

// Name implements Named.
func (s *Server) Name() string {
	return "link-server"
}

// Served returns the number of replied requests.
func (s *Server) Served() uint64 {
	return atomic.LoadUint64(&s.served)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, closerOf(s.ReadWriter), func() error {
		for {
			pkt, err := s.ReadWriter.ReadPacket()
			if err != nil {
				return err
			}
			if err = s.serve(ctx, pkt); err != nil {
				return err
			}
		}
	})
}

func (s *Server) serve(ctx context.Context, pkt []byte) error {
	f, err := DecodeFrame(pkt)
	if err != nil {
		glog.Warningf("link: drop bad packet: %v", err)
		return nil
	}
	if f.Reply {
		return nil
	}
	var rsp mailbox.Response
	cmd, err := f.Command()
	if err != nil {
		glog.Warningf("link: bad request seq %d: %v", f.Seq, err)
		cmd = &mailbox.Command{Opcode: f.Opcode}
		rsp = mailbox.NewResponse(f.Opcode, mailbox.StatusInvalidArgument)
	} else if rsp, err = s.Caller.Call(ctx, cmd); err != nil {
		glog.Warningf("link: request seq %d opcode %x: %v", f.Seq, uint32(cmd.Opcode), err)
		rsp = mailbox.NewResponse(cmd.Opcode, mailbox.StatusFromError(err))
	}
	out, err := f.Answer(cmd, rsp).Encode()
	if err != nil {
		return err
	}
	if err = s.ReadWriter.WritePacket(out); err != nil {
		return err
	}
	atomic.AddUint64(&s.served, 1)
	return nil
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	addReadWriter(loop, s.ReadWriter)
	loop.AddRunnable(s)
}
