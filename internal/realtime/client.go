// Package realtime implements the client side of the status push
// protocol: one persistent WebSocket per viewer session with status
// tracking, bounded reconnection and scoped teardown.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Identity supplies the bearer credential used for the handshake.
type Identity interface {
	IsSignedIn() bool
	Token(ctx context.Context) (string, error)
}

// Client is the connection manager. Listeners registered on the client
// survive reconnects; the physical connection does not.
//
// Listeners run on the connection's reader goroutine in receipt order and
// must not call Close or RemoveAllListeners.
type Client struct {
	config  Config
	logger  *slog.Logger
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	// dispatchMu is held while listeners run so that teardown can wait
	// for an in-flight callback and no callback starts afterwards.
	dispatchMu sync.Mutex

	mu              sync.Mutex
	status          Status
	conn            *conn
	handlers        map[string][]Handler
	statusListeners []StatusListener
	acks            map[string]*pendingAck
	cancel          context.CancelFunc
	stopped         chan struct{}
}

// NewClient creates a disconnected client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if config.EmitRate > 0 {
		limit = rate.Limit(config.EmitRate)
	}
	burst := config.EmitBurst
	if burst <= 0 {
		burst = 1
	}

	recordStatus(StatusDisconnected)

	return &Client{
		config: config,
		logger: logger.With("component", "realtime"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		limiter:  rate.NewLimiter(limit, burst),
		status:   StatusDisconnected,
		handlers: make(map[string][]Handler),
		acks:     make(map[string]*pendingAck),
	}
}

// pendingAck is bound to the connection its request was written on.
type pendingAck struct {
	conn    *conn
	fn      AckFunc
	dropped bool
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// On registers a handler for a named push event.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnStatus registers a listener for status transitions.
func (c *Client) OnStatus(l StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusListeners = append(c.statusListeners, l)
}

// RemoveAllListeners drops every event handler, status listener and
// pending acknowledgement. No listener is invoked after it returns.
func (c *Client) RemoveAllListeners() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string][]Handler)
	c.statusListeners = nil
	c.acks = make(map[string]*pendingAck)
}

// Establish fetches a credential and starts connecting in the background.
// Credential failures leave the client disconnected and are not retried.
// The identity is asked again before every reconnect attempt. After
// reconnect_failed, Establish may be called again.
func (c *Client) Establish(ctx context.Context, identity Identity) error {
	c.mu.Lock()
	if c.stopped != nil {
		c.mu.Unlock()
		return ErrAlreadyEstablished
	}
	runCtx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	c.cancel, c.stopped = cancel, stopped
	c.mu.Unlock()

	token, err := c.credential(ctx, runCtx, identity)
	if err != nil {
		cancel()
		c.logger.Error("credential unavailable, staying disconnected", "error", err)
		c.finish(stopped, StatusDisconnected)
		close(stopped)
		return err
	}

	c.setStatus(StatusConnecting)
	go c.run(runCtx, identity, token, stopped)
	return nil
}

func (c *Client) credential(ctx, runCtx context.Context, identity Identity) (string, error) {
	if !identity.IsSignedIn() {
		return "", ErrNotSignedIn
	}

	fetchCtx, fetchCancel := context.WithCancel(ctx)
	defer fetchCancel()
	stop := context.AfterFunc(runCtx, fetchCancel)
	defer stop()

	token, err := identity.Token(fetchCtx)
	if err != nil {
		if runCtx.Err() != nil {
			return "", ErrClosed
		}
		return "", fmt.Errorf("fetch credential: %w", err)
	}
	if runCtx.Err() != nil {
		return "", ErrClosed
	}
	return token, nil
}

// Close removes all listeners, closes the transport and waits for the
// connection goroutines to exit. It is safe to call more than once.
func (c *Client) Close() error {
	c.RemoveAllListeners()

	c.mu.Lock()
	cancel, stopped := c.cancel, c.stopped
	c.cancel, c.stopped = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}

	c.mu.Lock()
	c.status = StatusDisconnected
	c.mu.Unlock()
	recordStatus(StatusDisconnected)
	return nil
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(ctx context.Context, event string, data any) error {
	return c.send(ctx, event, "", data, nil)
}

// EmitWithAck sends an event and registers ack to receive the reply. The
// returned id can be passed to CancelAck. If the connection drops before
// the reply arrives, ack is never called.
func (c *Client) EmitWithAck(ctx context.Context, event string, data any, ack AckFunc) (string, error) {
	id := uuid.NewString()
	if err := c.send(ctx, event, id, data, ack); err != nil {
		return "", err
	}
	return id, nil
}

// CancelAck forgets a pending acknowledgement. It returns false when the
// ack already fired or was dropped.
func (c *Client) CancelAck(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.acks[id]; !ok {
		return false
	}
	delete(c.acks, id)
	return true
}

func (c *Client) send(ctx context.Context, event, ackID string, data any, ack AckFunc) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}

	// The ack is registered against the connection the frame goes out on,
	// so a swap between lookup and write cannot strand it.
	c.mu.Lock()
	cn := c.conn
	var pending *pendingAck
	if cn != nil && ack != nil {
		pending = &pendingAck{conn: cn, fn: ack}
		c.acks[ackID] = pending
	}
	c.mu.Unlock()
	if cn == nil {
		return ErrNotConnected
	}

	if err := cn.write(Frame{Type: FrameEvent, Event: event, AckID: ackID, Data: payload}); err != nil {
		if pending != nil {
			c.CancelAck(ackID)
		}
		return fmt.Errorf("emit %s: %w", event, err)
	}

	if pending != nil {
		c.mu.Lock()
		dropped := pending.dropped
		c.mu.Unlock()
		if dropped {
			return fmt.Errorf("emit %s: %w", event, ErrNotConnected)
		}
	}
	recordFrameSent(event)
	return nil
}

func (c *Client) run(ctx context.Context, identity Identity, token string, stopped chan struct{}) {
	final := c.loop(ctx, identity, token)
	c.finish(stopped, final)
	close(stopped)
}

// loop dials and redials until the context is cancelled or recovery is
// abandoned. It returns the terminal status, or "" when cancelled.
func (c *Client) loop(ctx context.Context, identity Identity, token string) Status {
	bo := c.newBackoff()
	attempts := 0

	for {
		if attempts > 0 {
			recordReconnectAttempt()
			c.logger.Info("reconnecting",
				"attempt", attempts,
				"max_attempts", c.config.ReconnectAttempts,
			)
			c.setStatus(StatusConnecting)
		}

		cn, err := c.connect(ctx, identity, &token, attempts > 0)
		if err == nil {
			attempts = 0
			bo.Reset()

			c.attach(cn)
			c.logger.Info("connected", "url", c.config.URL)
			c.setStatus(StatusConnected)

			select {
			case <-cn.done:
			case <-ctx.Done():
			}

			c.detach(cn)
			cn.close()
			if ctx.Err() != nil {
				return ""
			}

			c.logger.Warn("connection lost", "error", cn.cause())
			c.setStatus(StatusDisconnected)
		} else {
			if ctx.Err() != nil {
				return ""
			}
			if errors.Is(err, ErrNotSignedIn) || errors.Is(err, errNoFreshCredential) {
				c.logger.Error("credential rejected, giving up", "error", err)
				return StatusDisconnected
			}

			c.logger.Warn("connect failed", "attempt", attempts, "error", err)
			if attempts >= c.config.ReconnectAttempts {
				c.logger.Error("reconnect attempts exhausted",
					"max_attempts", c.config.ReconnectAttempts,
				)
				return StatusReconnectFailed
			}
		}

		if !sleep(ctx, bo.NextBackOff()) {
			return ""
		}
		attempts++
	}
}

// connect dials once. On a redial the credential is fetched again first.
// When the server rejects the credential and the identity has nothing
// newer to offer, the error wraps errNoFreshCredential.
func (c *Client) connect(ctx context.Context, identity Identity, token *string, refresh bool) (*conn, error) {
	if refresh {
		fresh, err := c.refreshCredential(ctx, identity)
		if err != nil {
			return nil, err
		}
		*token = fresh
	}

	cn, err := c.dial(ctx, *token)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return cn, err
	}

	fresh, ferr := c.refreshCredential(ctx, identity)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	if fresh == *token {
		return nil, fmt.Errorf("%w: %w", err, errNoFreshCredential)
	}
	*token = fresh
	return nil, err
}

func (c *Client) refreshCredential(ctx context.Context, identity Identity) (string, error) {
	if !identity.IsSignedIn() {
		return "", ErrNotSignedIn
	}
	token, err := identity.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh credential: %w", err)
	}
	return token, nil
}

func (c *Client) dial(ctx context.Context, token string) (*conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialCtx, cancel := context.WithTimeout(ctx, c.config.HandshakeTimeout)
	defer cancel()

	ws, resp, err := c.dialer.DialContext(dialCtx, c.config.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.config.URL, err)
	}

	return newConn(ws, c.config, c.logger, c.handleFrame), nil
}

func (c *Client) attach(cn *conn) {
	c.mu.Lock()
	c.conn = cn
	c.mu.Unlock()
	cn.start()
}

// detach forgets the connection and every pending ack bound to it.
func (c *Client) detach(cn *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == cn {
		c.conn = nil
	}
	dropped := 0
	for id, p := range c.acks {
		if p.conn == cn {
			p.dropped = true
			delete(c.acks, id)
			dropped++
		}
	}
	if dropped > 0 {
		c.logger.Debug("dropping pending acks", "count", dropped)
	}
}

// finish releases the run slot and publishes the final status. It does
// nothing when Close already claimed the slot.
func (c *Client) finish(stopped chan struct{}, final Status) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	if c.stopped != stopped {
		c.mu.Unlock()
		return
	}
	c.cancel, c.stopped = nil, nil
	if final == "" {
		c.mu.Unlock()
		return
	}
	c.status = final
	listeners := append([]StatusListener(nil), c.statusListeners...)
	c.mu.Unlock()

	recordStatus(final)
	for _, l := range listeners {
		l(final)
	}
}

func (c *Client) handleFrame(frame Frame) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	switch frame.Type {
	case FrameEvent:
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[frame.Event]...)
		c.mu.Unlock()

		if len(handlers) == 0 {
			c.logger.Debug("no listener for event", "event", frame.Event)
			recordFrameDropped("no_listener")
			return
		}
		for _, h := range handlers {
			h(frame.Data)
		}

	case FrameAck:
		c.mu.Lock()
		pending, ok := c.acks[frame.AckID]
		delete(c.acks, frame.AckID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping unknown ack", "ack_id", frame.AckID)
			recordFrameDropped("unknown_ack")
			return
		}
		pending.fn(frame.Data)

	default:
		c.logger.Warn("dropping frame of unknown type", "type", frame.Type)
		recordFrameDropped("unknown_type")
	}
}

func (c *Client) setStatus(s Status) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	c.status = s
	listeners := append([]StatusListener(nil), c.statusListeners...)
	c.mu.Unlock()

	recordStatus(s)
	for _, l := range listeners {
		l(s)
	}
}

func (c *Client) newBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.ReconnectInitialBackoff
	bo.MaxInterval = c.config.ReconnectMaxBackoff
	bo.Multiplier = c.config.ReconnectMultiplier
	bo.RandomizationFactor = c.config.ReconnectJitter
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// sleep waits for duration or context cancellation. Returns false if cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
