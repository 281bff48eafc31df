package mailbox

import (
	"context"
	"sync"
)

// Serial admits callers one at a time to the wrapped Caller,
// in the order they arrived.
type Serial struct {
	Caller Caller

	lock    sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// NewSerial wraps a Caller.
func NewSerial(caller Caller) *Serial {
	return &Serial{Caller: caller}
}

// Call implements Caller.
func (s *Serial) Call(ctx context.Context, cmd *Command) (Response, error) {
	if err := s.enter(ctx); err != nil {
		return Response{}, err
	}
	defer s.leave()
	return s.Caller.Call(ctx, cmd)
}

// Waiting returns the number of callers waiting for their turn.
func (s *Serial) Waiting() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.waiters)
}

func (s *Serial) enter(ctx context.Context) error {
	s.lock.Lock()
	if !s.busy {
		s.busy = true
		s.lock.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.lock.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for n, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:n], s.waiters[n+1:]...)
			return ctx.Err()
		}
	}
	// the turn was handed over while canceling, pass it on.
	s.handOver()
	return ctx.Err()
}

func (s *Serial) leave() {
	s.lock.Lock()
	s.handOver()
	s.lock.Unlock()
}

func (s *Serial) handOver() {
	if len(s.waiters) == 0 {
		s.busy = false
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}
