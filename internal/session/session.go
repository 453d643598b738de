// Package session binds a realtime connection to one organization room:
// it joins the room whenever the connection comes up, bootstraps the
// collections and feeds push events into the store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/incident-garden-live/internal/identity"
	"github.com/bissquit/incident-garden-live/internal/pkg/ctxlog"
	"github.com/bissquit/incident-garden-live/internal/realtime"
	"github.com/bissquit/incident-garden-live/internal/store"
)

// Outgoing event names.
const (
	EventJoin            = "join"
	EventGetComponents   = "get-components"
	EventGetIncidents    = "get-incidents"
	EventGetMaintenances = "get-maintenances"
)

var requestEvents = map[store.Collection]string{
	store.CollectionComponents:   EventGetComponents,
	store.CollectionIncidents:    EventGetIncidents,
	store.CollectionMaintenances: EventGetMaintenances,
}

// Conn is the part of realtime.Client the session drives.
type Conn interface {
	Status() realtime.Status
	On(event string, h realtime.Handler)
	OnStatus(l realtime.StatusListener)
	Establish(ctx context.Context, identity realtime.Identity) error
	Emit(ctx context.Context, event string, data any) error
	EmitWithAck(ctx context.Context, event string, data any, ack realtime.AckFunc) (string, error)
	CancelAck(id string) bool
	Close() error
}

// Session keeps a store in sync with one organization room. It borrows
// the connection for its lifetime and closes it on Close. A closed
// session cannot be reused.
type Session struct {
	config   Config
	conn     Conn
	identity identity.Provider
	store    *store.Store
	logger   *slog.Logger

	mu         sync.Mutex
	org        string
	status     realtime.Status
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	wg sync.WaitGroup
}

// New creates a session and registers its listeners on conn.
func New(config Config, conn Conn, provider identity.Provider, st *store.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		config:   config,
		conn:     conn,
		identity: provider,
		store:    st,
		logger:   logger.With("component", "session"),
		org:      config.OrganizationID,
		status:   conn.Status(),
	}

	for _, event := range store.Events() {
		conn.On(event, func(data json.RawMessage) {
			s.apply(event, data)
		})
	}
	conn.OnStatus(s.onStatus)

	return s
}

// Run establishes the connection and blocks until ctx is done, then tears
// the session down. A credential failure is logged and leaves the session
// disconnected until Reconnect.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	if err := s.conn.Establish(ctx, s.identity); err != nil {
		if errors.Is(err, realtime.ErrClosed) {
			return ErrClosed
		}
		s.logger.Error("establish connection", "error", err)
	}

	<-ctx.Done()
	return nil
}

// orgScope is the organization tag carried by push payloads.
type orgScope struct {
	OrgID string `json:"orgId"`
}

// apply feeds a push event into the store. The server keeps a socket in
// every room it ever joined, so events tagged with another organization
// are dropped. Untagged payloads, such as deletions, are applied.
func (s *Session) apply(event string, data json.RawMessage) {
	var scope orgScope
	_ = json.Unmarshal(data, &scope)

	s.mu.Lock()
	org := s.org
	s.mu.Unlock()

	if scope.OrgID != "" && scope.OrgID != org {
		s.logger.Debug("dropping event for another organization",
			"event", event,
			"event_org_id", scope.OrgID,
			"org_id", org,
		)
		recordForeignEvent(event)
		return
	}

	if err := s.store.Apply(event, data); err != nil {
		s.logger.Warn("dropping event", "event", event, "error", err)
	}
}

// Reconnect starts a new connection cycle. It fails with ErrAlreadyActive
// while the connection is connecting or connected.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	switch s.conn.Status() {
	case realtime.StatusConnecting, realtime.StatusConnected:
		return ErrAlreadyActive
	}

	if err := s.conn.Establish(ctx, s.identity); err != nil {
		if errors.Is(err, realtime.ErrAlreadyEstablished) {
			return ErrAlreadyActive
		}
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

// SetOrganization switches the room. Collections are cleared, and when the
// connection is up the new room is joined and bootstrapped.
func (s *Session) SetOrganization(orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || orgID == s.org {
		return
	}

	s.logger.Info("organization changed", "from", s.org, "to", orgID)
	if s.live() {
		s.stopLocked()
	}
	s.org = orgID
	s.store.Reset()
	if s.live() {
		s.startLocked()
	}
}

// Organization returns the current organization id.
func (s *Session) Organization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.org
}

// Status returns the connection status.
func (s *Session) Status() realtime.Status {
	return s.conn.Status()
}

// Snapshot returns the current collections.
func (s *Session) Snapshot() store.Snapshot {
	return s.store.Snapshot()
}

// Close closes the connection and waits for in-flight bootstraps.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.conn.Close()

	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()

	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (s *Session) onStatus(status realtime.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasLive := s.live()
	s.status = status
	if s.closed {
		return
	}

	switch {
	case !wasLive && s.live():
		s.startLocked()
	case wasLive && !s.live():
		s.stopLocked()
	}
}

// live is the join predicate: an organization is selected and the
// connection is up.
func (s *Session) live() bool {
	return s.org != "" && s.status == realtime.StatusConnected
}

// startLocked begins a new subscription generation. mu must be held.
func (s *Session) startLocked() {
	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func(gen uint64, org string) {
		defer s.wg.Done()
		s.subscribe(ctx, gen, org)
	}(s.generation, s.org)
}

// stopLocked abandons the current generation. mu must be held.
func (s *Session) stopLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) current(gen uint64) bool {
	return s.generation == gen && !s.closed
}

func (s *Session) subscribe(ctx context.Context, gen uint64, org string) {
	ctx = ctxlog.WithLogger(ctx, s.logger.With("org_id", org, "generation", gen))
	logger := ctxlog.FromContext(ctx)

	if err := s.conn.Emit(ctx, EventJoin, org); err != nil {
		if ctx.Err() == nil {
			logger.Warn("join failed", "error", err)
		}
		return
	}
	recordJoin()
	logger.Info("joined organization room")

	var wg sync.WaitGroup
	for _, c := range store.Collections() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.bootstrap(ctxlog.With(ctx, "collection", c), gen, org, c)
		}()
	}
	wg.Wait()
}

// bootstrap requests one collection snapshot, retrying on timeout. When
// every attempt fails the collection is flagged stale.
func (s *Session) bootstrap(ctx context.Context, gen uint64, org string, c store.Collection) {
	event := requestEvents[c]
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	for attempt := 1; attempt <= s.config.BootstrapAttempts; attempt++ {
		err := s.request(ctx, gen, org, c, event)
		if err == nil {
			recordBootstrap(c, started)
			logger.Debug("collection bootstrapped", "attempt", attempt)
			return
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("bootstrap attempt failed",
			"attempt", attempt,
			"max_attempts", s.config.BootstrapAttempts,
			"error", err,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}
	s.store.MarkStale(c)
	recordBootstrapFailure(c)
	logger.Error("bootstrap abandoned, collection is stale")
}

var errBootstrapTimeout = errors.New("bootstrap timed out")

// request performs one get-* call and waits for its acknowledgement.
func (s *Session) request(ctx context.Context, gen uint64, org string, c store.Collection, event string) error {
	result := make(chan error, 1)

	id, err := s.conn.EmitWithAck(ctx, event, org, func(data json.RawMessage) {
		result <- s.replace(gen, c, data)
	})
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.config.BootstrapTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		s.conn.CancelAck(id)
		return ctx.Err()
	case <-timer.C:
	}

	if s.conn.CancelAck(id) {
		return errBootstrapTimeout
	}
	// The ack is already running or was dropped with the connection.
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replace installs a snapshot unless its generation was superseded.
func (s *Session) replace(gen uint64, c store.Collection, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return context.Canceled
	}
	return s.store.Replace(c, data)
}
