package reconnws

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reconnws/reconnws/pkg/backoff"
	"github.com/reconnws/reconnws/pkg/logger"
	"github.com/reconnws/reconnws/pkg/transport"
	"github.com/reconnws/reconnws/pkg/transport/gorillaws"
)

const (
	// DefaultReconnectInterval is the base delay between retries.
	DefaultReconnectInterval = 1 * time.Second
	// DefaultMaxReconnectInterval caps the retry delay.
	DefaultMaxReconnectInterval = 30 * time.Second
	// DefaultReconnectDecay is the exponential backoff multiplier.
	DefaultReconnectDecay = 1.5
	// DefaultTimeoutInterval bounds how long a handshake may take before the
	// attempt is abandoned.
	DefaultTimeoutInterval = 2 * time.Second
	// DefaultFirstConnectBackoffFactor scales the base delay while the
	// endpoint has never connected.
	DefaultFirstConnectBackoffFactor = 3.0
	// DefaultMaxUnreachableFailures is how many consecutive matching failures
	// classify a never-connected endpoint as unreachable.
	DefaultMaxUnreachableFailures = 3
)

// BinaryType is the outbound framing hint passed through to the transport.
type BinaryType string

const (
	BinaryTypeText   BinaryType = "text"
	BinaryTypeBinary BinaryType = "binary"
)

// Config collects the manager's tunables. All fields are optional; NewConfig
// fills in the documented defaults.
type Config struct {
	// Debug logs state transitions. When no Logger is set it enables a
	// zerolog debug logger on stdout.
	Debug bool

	// Logger overrides the logger chosen by Debug.
	Logger logger.Logger

	// AutomaticOpen opens the connection on construction and on endpoint
	// change. Default on.
	AutomaticOpen bool

	// ReconnectInterval is the base retry delay. Default 1s.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the retry delay. Default 30s.
	MaxReconnectInterval time.Duration

	// ReconnectDecay is the backoff multiplier, greater than 1. Default 1.5.
	ReconnectDecay float64

	// TimeoutInterval bounds the handshake. Default 2s.
	TimeoutInterval time.Duration

	// MaxReconnectAttempts bounds retries; 0 means unbounded. Default 0.
	MaxReconnectAttempts int

	// FirstConnectBackoffFactor scales ReconnectInterval while the endpoint
	// has never completed a handshake. Default 3.0.
	FirstConnectBackoffFactor float64

	// UnreachableCloseCodes, when non-empty, is the set of close codes that
	// count toward classifying a never-connected endpoint as unreachable.
	// Default nil, classification disabled.
	UnreachableCloseCodes []int

	// MaxUnreachableFailures is how many consecutive matching failures trip
	// the unreachable classification. Default 3.
	MaxUnreachableFailures int

	// BinaryType selects text or binary outbound frames. Default text.
	BinaryType BinaryType

	// Subprotocols and RequestHeader are passed through to the transport.
	Subprotocols  []string
	RequestHeader http.Header

	// Dialer overrides the transport. Defaults to a gorilla/websocket dialer
	// configured from the fields above.
	Dialer transport.Dialer
}

// Option mutates a Config before it is applied.
type Option func(*Config)

// NewConfig returns a Config with defaults applied, then the options.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		AutomaticOpen:             true,
		ReconnectInterval:         DefaultReconnectInterval,
		MaxReconnectInterval:      DefaultMaxReconnectInterval,
		ReconnectDecay:            DefaultReconnectDecay,
		TimeoutInterval:           DefaultTimeoutInterval,
		FirstConnectBackoffFactor: DefaultFirstConnectBackoffFactor,
		MaxUnreachableFailures:    DefaultMaxUnreachableFailures,
		BinaryType:                BinaryTypeText,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithDebug() Option {
	return func(c *Config) { c.Debug = true }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithAutomaticOpen(open bool) Option {
	return func(c *Config) { c.AutomaticOpen = open }
}

func WithReconnectInterval(d time.Duration) Option {
	return func(c *Config) { c.ReconnectInterval = d }
}

func WithMaxReconnectInterval(d time.Duration) Option {
	return func(c *Config) { c.MaxReconnectInterval = d }
}

func WithReconnectDecay(decay float64) Option {
	return func(c *Config) { c.ReconnectDecay = decay }
}

func WithTimeoutInterval(d time.Duration) Option {
	return func(c *Config) { c.TimeoutInterval = d }
}

func WithMaxReconnectAttempts(n int) Option {
	return func(c *Config) { c.MaxReconnectAttempts = n }
}

func WithFirstConnectBackoffFactor(factor float64) Option {
	return func(c *Config) { c.FirstConnectBackoffFactor = factor }
}

func WithUnreachableCloseCodes(codes ...int) Option {
	return func(c *Config) { c.UnreachableCloseCodes = codes }
}

func WithMaxUnreachableFailures(n int) Option {
	return func(c *Config) { c.MaxUnreachableFailures = n }
}

func WithBinaryType(bt BinaryType) Option {
	return func(c *Config) { c.BinaryType = bt }
}

func WithSubprotocols(protocols ...string) Option {
	return func(c *Config) { c.Subprotocols = protocols }
}

func WithRequestHeader(h http.Header) Option {
	return func(c *Config) { c.RequestHeader = h }
}

func WithDialer(d transport.Dialer) Option {
	return func(c *Config) { c.Dialer = d }
}

func (c *Config) policy() *backoff.Policy {
	return &backoff.Policy{
		InitialDelay:       c.ReconnectInterval,
		MaxDelay:           c.MaxReconnectInterval,
		Multiplier:         c.ReconnectDecay,
		FirstConnectFactor: c.FirstConnectBackoffFactor,
		MaxRetries:         c.MaxReconnectAttempts,
	}
}

func (c *Config) logger() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.Debug {
		log, err := logger.New().WithLevel(zerolog.DebugLevel).Make()
		if err == nil {
			return log
		}
	}
	return logger.Noop{}
}

func (c *Config) dialer() transport.Dialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return &gorillaws.Dialer{
		RequestHeader: c.RequestHeader,
		Subprotocols:  c.Subprotocols,
		Binary:        c.BinaryType == BinaryTypeBinary,
	}
}

func (c *Config) unreachableCode(code int) bool {
	for _, uc := range c.UnreachableCloseCodes {
		if uc == code {
			return true
		}
	}
	return false
}
