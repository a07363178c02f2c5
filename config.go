package authsession

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds everything a Manager needs besides its collaborators.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.trackwise.app/api/v1".
	BaseURL string
	HTTP    HTTPConfig
	Session SessionConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// HTTPConfig configures the transport shared by the gateway and the
// resource client.
type HTTPConfig struct {
	// Timeout bounds each request, connect to last body byte.
	Timeout   time.Duration
	UserAgent string
	// RequestIDs stamps X-Request-ID on outgoing requests.
	RequestIDs bool
}

// SessionConfig controls the credential cache.
type SessionConfig struct {
	// LazyCache skips warming the cache from durable storage at Build. The
	// first request after a restart then goes out anonymous until Login.
	LazyCache bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// EventsConfig controls asynchronous session event delivery.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every field except BaseURL set.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			UserAgent:  "trackwise-authsession/1.0",
			RequestIDs: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return configError("BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return configError("BaseURL must be an absolute http(s) URL")
	}

	if c.HTTP.Timeout <= 0 {
		return configError("HTTP Timeout must be > 0")
	}
	if c.HTTP.Timeout > 5*time.Minute {
		return configError("HTTP Timeout must be <= 5m")
	}
	if strings.ContainsAny(c.HTTP.UserAgent, "\r\n") {
		return configError("HTTP UserAgent must not contain line breaks")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return configError("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return configError("Events BufferSize must be > 0 when Events are enabled")
	}
	return nil
}

func configError(msg string) error {
	return errors.Join(ErrInvalidConfig, errors.New(msg))
}
