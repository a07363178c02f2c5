package authsession

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackwise/authsession/api"
	"github.com/trackwise/authsession/apierror"
	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/gateway"
)

// State is the session state derived from the credential cache.
type State uint8

const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Manager owns one logical session. All methods are safe for concurrent use;
// Register, Login and Logout are serialized against each other.
type Manager struct {
	config     Config
	store      *credential.Store
	gateway    IdentityGateway
	httpClient *http.Client
	api        *api.Client
	logger     *slog.Logger
	metrics    *Metrics
	events     *eventDispatcher

	mu     sync.Mutex
	closed atomic.Bool
}

// Register creates the account without logging in.
func (m *Manager) Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Identity, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.register(ctx, req)
}

// RegisterAndLogin registers and then logs in with the same credentials. A
// failed registration is returned as is and no login is attempted. A failed
// login after a successful registration is returned as *RegisteredLoginError
// and the session stays anonymous.
func (m *Manager) RegisterAndLogin(ctx context.Context, req gateway.RegisterRequest) (*gateway.Identity, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, err := m.register(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := m.login(ctx, req.Email, req.Password); err != nil {
		m.metrics.Inc(MetricAutoLoginFailure)
		m.emitFailure(ctx, EventAutoLoginFailure, req.Email, err)
		return nil, &RegisteredLoginError{Identity: identity, Err: err}
	}
	return identity, nil
}

// Login authenticates and persists the session. On success the cache already
// holds the new token when Login returns. On failure the classified error is
// returned unchanged and the previous session, if any, is left in place.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx, email, password)
}

// Logout clears the local session. It never fails and never touches the
// network; backend errors are logged and the cache is emptied regardless.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.metrics.Inc(MetricSessionClearFailure)
		m.logger.Warn("credential clear failed; cache emptied", "error", err)
	}
	m.metrics.Inc(MetricLogout)
	m.emit(ctx, SessionEvent{EventType: EventLogout, Success: true})
	m.logger.Info("logged out")
}

// IsAuthenticated reports whether a durable record exists. When the backend
// cannot be read it falls back to the cache.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	ok, err := m.store.IsAuthenticated(ctx)
	if err != nil {
		m.logger.Warn("credential read failed; using cache", "error", err)
		_, ok = m.store.ReadCached()
	}
	return ok
}

// AccessToken returns the cached token without I/O.
func (m *Manager) AccessToken() (string, bool) {
	return m.store.ReadCached()
}

// State derives the session state from the cache.
func (m *Manager) State() State {
	if _, ok := m.store.ReadCached(); ok {
		return StateAuthenticated
	}
	return StateAnonymous
}

// HTTPClient returns the client whose requests carry the cached bearer token.
func (m *Manager) HTTPClient() *http.Client {
	return m.httpClient
}

// API returns the resource client bound to HTTPClient.
func (m *Manager) API() *api.Client {
	return m.api
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot copies the manager's counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// DroppedEvents reports events discarded because the buffer was full.
func (m *Manager) DroppedEvents() uint64 {
	return m.events.Dropped()
}

// Close flushes pending events and closes the credential backend. The
// session record is kept.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.events.Close()
	return m.store.Close()
}

func (m *Manager) register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Identity, error) {
	identity, err := m.gateway.Register(ctx, req)
	if err != nil {
		classified := apierror.Ensure(err)
		m.metrics.Inc(MetricRegisterFailure)
		if classified.IsConflict() {
			m.metrics.Inc(MetricRegisterConflict)
		}
		m.metrics.incFailure(classified)
		m.emitFailure(ctx, EventRegisterFailure, req.Email, classified)
		return nil, classified
	}
	m.metrics.Inc(MetricRegisterSuccess)
	m.emit(ctx, SessionEvent{EventType: EventRegisterSuccess, Email: identity.Email, Success: true})
	return identity, nil
}

func (m *Manager) login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	start := time.Now()
	token, err := m.gateway.Login(ctx, email, password)
	m.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		classified := apierror.Ensure(err)
		m.metrics.Inc(MetricLoginFailure)
		m.metrics.incFailure(classified)
		m.emitFailure(ctx, EventLoginFailure, email, classified)
		return classified
	}

	if err := m.store.Save(ctx, token.AccessToken, email); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.metrics.Inc(MetricSessionPersistFailure)
		wrapped := apierror.Ensure(fmt.Errorf("%w: %w", ErrSessionPersist, err))
		m.emitFailure(ctx, EventLoginFailure, email, wrapped)
		m.logger.Error("session persist failed", "error", err)
		return wrapped
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, SessionEvent{EventType: EventLoginSuccess, Email: email, Success: true})
	m.logger.Info("logged in", "email", email, "token_type", token.TokenType)
	return nil
}

func (m *Manager) emit(ctx context.Context, event SessionEvent) {
	if m.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.events.Emit(ctx, event)
}

func (m *Manager) emitFailure(ctx context.Context, eventType, email string, err error) {
	if m.events == nil {
		return
	}
	event := SessionEvent{EventType: eventType, Email: email}
	if ce, ok := apierror.As(err); ok {
		event.Kind = ce.Kind.String()
		event.Status = ce.Status
		event.Error = ce.Message
	}
	m.emit(ctx, event)
}
