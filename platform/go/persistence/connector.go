package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConnState is the lifecycle state of a Connector.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotConnected is returned when the connection is requested before the first successful dial.
var ErrNotConnected = errors.New("database not connected")

// Conn is the subset of a connection handle the connector manages.
type Conn interface {
	Ping(ctx context.Context) error
	Close()
}

// DialFunc opens a new connection handle.
type DialFunc[C Conn] func(ctx context.Context) (C, error)

type connectorOptions struct {
	healthInterval time.Duration
	maxElapsed     time.Duration
	onState        func(ConnState)
	newBackOff     func() backoff.BackOff
}

// ConnectorOption customises a Connector.
type ConnectorOption[C Conn] func(*connectorOptions)

// WithHealthInterval sets how often Run pings a connected handle.
func WithHealthInterval[C Conn](d time.Duration) ConnectorOption[C] {
	return func(o *connectorOptions) { o.healthInterval = d }
}

// WithMaxElapsed bounds how long Connect keeps retrying. Zero retries until the context ends.
func WithMaxElapsed[C Conn](d time.Duration) ConnectorOption[C] {
	return func(o *connectorOptions) { o.maxElapsed = d }
}

// WithStateObserver receives every state transition.
func WithStateObserver[C Conn](fn func(ConnState)) ConnectorOption[C] {
	return func(o *connectorOptions) { o.onState = fn }
}

// WithBackOff replaces the exponential retry policy.
func WithBackOff[C Conn](fn func() backoff.BackOff) ConnectorOption[C] {
	return func(o *connectorOptions) { o.newBackOff = fn }
}

// Connector owns a single connection handle, dials it with exponential backoff
// and tracks its health. Readers block in WaitReady until the handle is usable.
type Connector[C Conn] struct {
	dial   DialFunc[C]
	logger *zap.Logger
	opts   connectorOptions

	mu      sync.RWMutex
	conn    C
	hasConn bool
	state   ConnState
	lastErr error
	changed chan struct{}
	closed  bool
}

func NewConnector[C Conn](dial DialFunc[C], logger *zap.Logger, opts ...ConnectorOption[C]) *Connector[C] {
	if dial == nil {
		panic("connector dial func is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := connectorOptions{
		healthInterval: 15 * time.Second,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Connector[C]{
		dial:    dial,
		logger:  logger,
		opts:    o,
		state:   StateDisconnected,
		changed: make(chan struct{}),
	}
}

// State returns the current state and the last dial or ping error.
func (c *Connector[C]) State() (ConnState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.lastErr
}

// Conn returns the handle once the first dial has succeeded. A handle in StateError
// is still returned; pgx recovers individual connections on its own.
func (c *Connector[C]) Conn() (C, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasConn {
		var zero C
		return zero, ErrNotConnected
	}
	return c.conn, nil
}

// Connect dials until it succeeds, the context ends or the backoff policy gives up.
func (c *Connector[C]) Connect(ctx context.Context) error {
	c.mu.RLock()
	already := c.hasConn
	c.mu.RUnlock()
	if already {
		return nil
	}

	c.setState(StateConnecting, nil)

	policy := c.policy(ctx)
	attempt := 0
	op := func() error {
		attempt++
		conn, err := c.dial(ctx)
		if err != nil {
			return err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return backoff.Permanent(errors.New("connector closed"))
		}
		c.conn = conn
		c.hasConn = true
		c.mu.Unlock()
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("database dial failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)
		c.setState(StateConnecting, err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		c.setState(StateError, err)
		return fmt.Errorf("connect database: %w", err)
	}

	c.logger.Info("database connected", zap.Int("attempts", attempt))
	c.setState(StateConnected, nil)
	return nil
}

// Run connects if needed, then pings on every health interval until ctx ends.
// A failed ping moves to StateError and retries with backoff until the handle answers again.
func (c *Connector[C]) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.opts.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.check(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("database health check gave up", zap.Error(err))
			}
		}
	}
}

func (c *Connector[C]) check(ctx context.Context) error {
	conn, err := c.Conn()
	if err != nil {
		return err
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conn.Ping(pingCtx)
	}

	err = ping()
	if err == nil {
		if state, _ := c.State(); state != StateConnected {
			c.logger.Info("database connection recovered")
			c.setState(StateConnected, nil)
		}
		return nil
	}
	c.logger.Warn("database ping failed", zap.Error(err))
	c.setState(StateError, err)

	if err := backoff.RetryNotify(ping, c.policy(ctx), func(err error, wait time.Duration) {
		c.setState(StateError, err)
	}); err != nil {
		return err
	}

	c.logger.Info("database connection recovered")
	c.setState(StateConnected, nil)
	return nil
}

// WaitReady blocks until the connector reaches StateConnected or ctx ends.
func (c *Connector[C]) WaitReady(ctx context.Context) error {
	for {
		c.mu.RLock()
		state, changed := c.state, c.changed
		c.mu.RUnlock()

		if state == StateConnected {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Close releases the handle. The connector reports StateDisconnected afterwards.
func (c *Connector[C]) Close() {
	c.mu.Lock()
	c.closed = true
	conn, has := c.conn, c.hasConn
	var zero C
	c.conn = zero
	c.hasConn = false
	c.mu.Unlock()

	if has {
		conn.Close()
	}
	c.setState(StateDisconnected, nil)
}

func (c *Connector[C]) policy(ctx context.Context) backoff.BackOff {
	b := c.opts.newBackOff()
	if exp, ok := b.(*backoff.ExponentialBackOff); ok {
		exp.MaxElapsedTime = c.opts.maxElapsed
		exp.Reset()
	}
	return backoff.WithContext(b, ctx)
}

func (c *Connector[C]) setState(state ConnState, err error) {
	c.mu.Lock()
	transition := c.state != state
	c.state = state
	c.lastErr = err
	if transition {
		close(c.changed)
		c.changed = make(chan struct{})
	}
	c.mu.Unlock()

	if transition && c.opts.onState != nil {
		c.opts.onState(state)
	}
}
