package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	closedCh chan struct{}
}

func (c *closeRecorder) Close() error {
	close(c.closedCh)
	return nil
}

func TestRunnerWait(t *testing.T) {
	errFail := errors.New("fail")
	runner := NewRunner().Go(
		RunFunc(func(context.Context) error { return errFail }),
		RunFunc(func(context.Context) error { return context.Canceled }),
		RunFunc(func(context.Context) error { return nil }),
	)
	err := runner.Wait()
	<-runner.Stopped()
	require.Error(t, err)
	require.Equal(t, []error{errFail}, err.(*AggregatedError).Errors)
	require.Equal(t, "fail", err.Error())

	require.NoError(t, NewRunner().Go(RunFunc(func(context.Context) error { return nil })).Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"), nil, errors.New("b"))
	require.Equal(t, "2 errors: a; b", errs.Aggregate().Error())
}

func TestLoopStopsWithRunnable(t *testing.T) {
	errDone := errors.New("done")
	tickCh := make(chan int, 1)
	loop := NewLoop()
	loop.Interval = 5 * time.Millisecond
	loop.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		select {
		case tickCh <- cc.PriorityLevel():
		default:
		}
		return nil
	}))
	loop.AddRunnable(RunFunc(func(ctx context.Context) error {
		if lv := <-tickCh; lv != PrLvIdle {
			return errors.New("unexpected priority level")
		}
		return errDone
	}), RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	err := loop.Run(context.TODO())
	require.Error(t, err)
	require.Equal(t, []error{errDone}, err.(*AggregatedError).Errors)
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.TODO())
	closer := &closeRecorder{closedCh: make(chan struct{})}
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-closer.closedCh
		return errors.New("closed")
	})
	require.Equal(t, context.Canceled, err)

	closer = &closeRecorder{closedCh: make(chan struct{})}
	err = RunWithContextCloser(context.TODO(), closer, func() error { return nil })
	require.NoError(t, err)
	<-closer.closedCh
}
