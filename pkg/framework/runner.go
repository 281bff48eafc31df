package framework

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// Runner starts Runnables in goroutines and collects their errors.
type Runner struct {
	ctx       context.Context
	started   int
	errCh     chan error
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

// NewRunner creates a Runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner passing ctx to every Runnable.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		ctx:       ctx,
		errCh:     make(chan error, 1),
		stoppedCh: make(chan struct{}),
	}
}

// SignalContext derives a context canceled on Ctrl-C or SIGTERM.
// A second signal exits the process.
func SignalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Exit("stop requested again, force exit")
	}()
	return ctx
}

// Go starts the Runnables.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := strconv.Itoa(r.started)
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.started++
		go func(runnable Runnable, name string) {
			err := runnable.Run(r.ctx)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			r.stopOnce.Do(func() { close(r.stoppedCh) })
			r.errCh <- err
		}(runnable, name)
	}
	return r
}

// Stopped is closed when the first Runnable stops.
func (r *Runner) Stopped() <-chan struct{} {
	return r.stoppedCh
}

// Wait waits for all Runnables. context.Canceled is not an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for n := 0; n < r.started; n++ {
		if err := <-r.errCh; err != context.Canceled {
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is called when ctx is done before fn returns, and is expected
// to make fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	}
}

// RunWithContextCloser is RunWithContextCancel which always closes closer,
// either on cancel or after fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
