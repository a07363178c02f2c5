package authsession

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/trackwise/authsession/api"
	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/gateway"
	"github.com/trackwise/authsession/middleware"
)

// IdentityGateway is the network half of the session lifecycle.
// *gateway.Gateway implements it; tests substitute fakes.
type IdentityGateway interface {
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Identity, error)
	Login(ctx context.Context, email, password string) (*gateway.Token, error)
}

// Builder assembles a Manager. A Builder can be built once.
type Builder struct {
	config Config

	store     *credential.Store
	backend   credential.Backend
	sealer    credential.Sealer
	gateway   IdentityGateway
	transport http.RoundTripper
	logger    *slog.Logger
	eventSink EventSink

	built bool
}

// New starts from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStore supplies a ready credential store. It takes precedence over
// WithBackend.
func (b *Builder) WithStore(store *credential.Store) *Builder {
	b.store = store
	return b
}

// WithBackend has Build create the credential store over backend, sealing
// values with sealer.
func (b *Builder) WithBackend(backend credential.Backend, sealer credential.Sealer) *Builder {
	b.backend = backend
	b.sealer = sealer
	return b
}

// WithGateway replaces the HTTP identity gateway.
func (b *Builder) WithGateway(gw IdentityGateway) *Builder {
	b.gateway = gw
	return b
}

// WithTransport sets the innermost RoundTripper; nil uses
// http.DefaultTransport.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithLogger sets the logger; nil keeps slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink enables session events delivered to sink.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithMetricsEnabled toggles the session counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the collaborators and, unless
// Session.LazyCache is set, warms the credential cache from durable storage
// so the first request after a restart is already authenticated.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if b.eventSink != nil {
		cfg.Events.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := b.store
	if store == nil {
		if b.backend == nil {
			return nil, ErrStoreRequired
		}
		s, err := credential.NewStore(b.backend, b.sealer, logger)
		if err != nil {
			return nil, err
		}
		store = s
	}

	var stages []middleware.Stage
	if cfg.HTTP.RequestIDs {
		stages = append(stages, middleware.RequestID())
	}
	stages = append(stages, middleware.UserAgent(cfg.HTTP.UserAgent))

	plain := middleware.NewHTTPClient(b.transport, cfg.HTTP.Timeout, stages...)
	authed := middleware.NewHTTPClient(b.transport, cfg.HTTP.Timeout,
		append(stages[:len(stages):len(stages)], middleware.WithAuthenticator(store))...)

	gw := b.gateway
	if gw == nil {
		g, err := gateway.New(cfg.BaseURL, plain, logger)
		if err != nil {
			return nil, err
		}
		gw = g
	}
	resources, err := api.New(cfg.BaseURL, authed, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		config:     cfg,
		store:      store,
		gateway:    gw,
		httpClient: authed,
		api:        resources,
		logger:     logger,
		metrics:    NewMetrics(cfg.Metrics),
		events:     newEventDispatcher(cfg.Events, b.eventSink),
	}

	if !cfg.Session.LazyCache {
		m.warm(ctx)
	}

	b.built = true
	logger.Debug("session manager built",
		"base_url", cfg.BaseURL,
		"lazy_cache", cfg.Session.LazyCache,
		"events", cfg.Events.Enabled,
		"state", m.State().String())
	return m, nil
}

func (m *Manager) warm(ctx context.Context) {
	if err := m.store.Warm(ctx); err != nil {
		// Start anonymous; Login rewrites the record.
		m.logger.Warn("session cache warm failed", "error", err)
		m.metrics.Inc(MetricCacheWarmMiss)
		return
	}
	if _, ok := m.store.ReadCached(); ok {
		m.metrics.Inc(MetricCacheWarmHit)
		m.emit(ctx, SessionEvent{EventType: EventCacheWarmed, Success: true})
		return
	}
	m.metrics.Inc(MetricCacheWarmMiss)
}
