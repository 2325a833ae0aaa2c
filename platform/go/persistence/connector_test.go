package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	mu      sync.Mutex
	pingErr error
	closed  atomic.Bool
}

func (f *fakeConn) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeConn) Close() { f.closed.Store(true) }

func (f *fakeConn) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(5 * time.Millisecond)
}

type stateLog struct {
	mu     sync.Mutex
	states []ConnState
}

func (l *stateLog) record(s ConnState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) snapshot() []ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConnState(nil), l.states...)
}

func TestConnectorRetriesInitialDial(t *testing.T) {
	conn := &fakeConn{}
	var dials atomic.Int32
	dial := func(ctx context.Context) (*fakeConn, error) {
		if dials.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}

	states := &stateLog{}
	c := NewConnector[*fakeConn](dial, zaptest.NewLogger(t),
		WithBackOff[*fakeConn](fastBackOff),
		WithStateObserver[*fakeConn](states.record),
	)

	_, err := c.Conn()
	require.ErrorIs(t, err, ErrNotConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	got, err := c.Conn()
	require.NoError(t, err)
	require.Same(t, conn, got)
	require.EqualValues(t, 3, dials.Load())

	state, lastErr := c.State()
	require.Equal(t, StateConnected, state)
	require.NoError(t, lastErr)
	require.Equal(t, []ConnState{StateConnecting, StateConnected}, states.snapshot())

	c.Close()
	require.True(t, conn.closed.Load())
	state, _ = c.State()
	require.Equal(t, StateDisconnected, state)
}

func TestConnectorConnectHonoursContext(t *testing.T) {
	dial := func(ctx context.Context) (*fakeConn, error) {
		return nil, errors.New("connection refused")
	}
	c := NewConnector[*fakeConn](dial, zaptest.NewLogger(t), WithBackOff[*fakeConn](fastBackOff))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx)
	require.Error(t, err)
	state, _ := c.State()
	require.Equal(t, StateError, state)
}

func TestConnectorWaitReady(t *testing.T) {
	release := make(chan struct{})
	conn := &fakeConn{}
	dial := func(ctx context.Context) (*fakeConn, error) {
		select {
		case <-release:
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := NewConnector[*fakeConn](dial, zaptest.NewLogger(t), WithBackOff[*fakeConn](fastBackOff))

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	require.ErrorIs(t, c.WaitReady(short), context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = c.Connect(ctx) }()
	close(release)
	require.NoError(t, c.WaitReady(ctx))
}

func TestConnectorRunRecoversAfterPingFailure(t *testing.T) {
	conn := &fakeConn{}
	dial := func(ctx context.Context) (*fakeConn, error) { return conn, nil }

	states := &stateLog{}
	c := NewConnector[*fakeConn](dial, zaptest.NewLogger(t),
		WithBackOff[*fakeConn](fastBackOff),
		WithHealthInterval[*fakeConn](5*time.Millisecond),
		WithStateObserver[*fakeConn](states.record),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, c.WaitReady(ctx))

	conn.setPingErr(errors.New("server closed the connection"))
	require.Eventually(t, func() bool {
		state, _ := c.State()
		return state == StateError
	}, 2*time.Second, 5*time.Millisecond)

	conn.setPingErr(nil)
	require.Eventually(t, func() bool {
		state, _ := c.State()
		return state == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Contains(t, states.snapshot(), StateError)
}
