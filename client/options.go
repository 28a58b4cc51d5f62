package client

import (
	"time"
)

// Options configures the OrientDB client behavior.
type Options struct {
	// DefaultTimeoutMs is the default timeout in milliseconds for operations.
	// Default: 10000 (10 seconds)
	DefaultTimeoutMs int

	// DebugMode enables verbose error serialization with full cause chains.
	// When true, errors include complete stack of wrapped errors.
	// When false, errors are flattened to single message.
	// Default: false
	DebugMode bool

	// MaxRetries is the maximum number of connection retry attempts.
	// Uses exponential backoff: 100ms, 200ms, 400ms, etc.
	// Default: 3
	MaxRetries int

	// PoolMinSize is the minimum number of idle sessions the pool maintains.
	// Default: 1 (single session mode)
	PoolMinSize int

	// PoolMaxSize is the maximum number of open sessions in the pool.
	// Default: 1 (single session mode)
	PoolMaxSize int

	// PoolIdleTimeout is the duration after which idle sessions are closed.
	// Default: 30s
	PoolIdleTimeout time.Duration

	// HealthCheckInterval is how often to ping idle sessions.
	// Default: 30s
	HealthCheckInterval time.Duration

	// MaxReconnectAttempts is the maximum number of automatic reconnection attempts.
	// Default: 10
	MaxReconnectAttempts int

	// TLSEnabled wraps the connection in TLS.
	// Default: false
	TLSEnabled bool

	// TLSInsecureSkipVerify skips certificate validation (for development only).
	// Default: false
	TLSInsecureSkipVerify bool

	// TLSCertFile is the path to the client certificate file.
	TLSCertFile string

	// TLSKeyFile is the path to the client private key file.
	TLSKeyFile string

	// TLSCAFile is the path to a PEM bundle of trusted CAs. Empty means
	// the system pool.
	TLSCAFile string

	// Logger is the logger implementation to use.
	// If nil, a default logger is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// OnConnected is called when a session is successfully established.
	OnConnected func(StateTransition)

	// OnDisconnected is called when a session is lost.
	OnDisconnected func(StateTransition)

	// OnReconnecting is called when automatic reconnection is attempted.
	OnReconnecting func(StateTransition)

	// TokenSession requests a token-backed session during the handshake.
	// The server may still answer with an empty token.
	// Default: false
	TokenSession bool

	// PreloadSchema fetches the global property catalog right after a
	// database opens. When false the catalog loads lazily on the first
	// id-referenced field the decoder cannot resolve.
	// Default: false
	PreloadSchema bool

	// DefaultFetchPlan is sent with loads and queries that do not set one.
	// Default: "*:0" (no eager link resolution)
	DefaultFetchPlan string
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		DefaultTimeoutMs:      10000,
		DebugMode:             false,
		MaxRetries:            3,
		PoolMinSize:           1,
		PoolMaxSize:           1,
		PoolIdleTimeout:       30 * time.Second,
		HealthCheckInterval:   30 * time.Second,
		MaxReconnectAttempts:  10,
		TLSEnabled:            false,
		TLSInsecureSkipVerify: false,
		LogLevel:              "INFO",
		TokenSession:          false,
		PreloadSchema:         false,
		DefaultFetchPlan:      "*:0",
	}
}

// withDefaults fills zero-valued fields so partially populated Options
// behave like DefaultOptions for the rest.
func (o Options) withDefaults() Options {
	if o.DefaultTimeoutMs <= 0 {
		o.DefaultTimeoutMs = 10000
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.PoolMinSize <= 0 {
		o.PoolMinSize = 1
	}
	if o.PoolMaxSize < o.PoolMinSize {
		o.PoolMaxSize = o.PoolMinSize
	}
	if o.PoolIdleTimeout <= 0 {
		o.PoolIdleTimeout = 30 * time.Second
	}
	if o.HealthCheckInterval <= 0 {
		o.HealthCheckInterval = 30 * time.Second
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 10
	}
	if o.LogLevel == "" {
		o.LogLevel = "INFO"
	}
	if o.DefaultFetchPlan == "" {
		o.DefaultFetchPlan = "*:0"
	}
	return o
}

// timeout returns the default operation timeout as a duration.
func (o Options) timeout() time.Duration {
	return time.Duration(o.DefaultTimeoutMs) * time.Millisecond
}
