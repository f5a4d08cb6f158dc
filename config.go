package flowpipe

import "github.com/zoobzio/clockz"

// Config holds injectable, test-friendly defaults for a Pipeline. Pass
// Options to NewPipeline to override any field; all fields have sensible
// defaults set by NewConfig.
type Config struct {
	// Clock is the timestamp source for ProcessingError timestamps and
	// event timestamps. Set by NewConfig to clockz.RealClock.
	Clock clockz.Clock

	// Logger receives free-text operational logs. Set by NewConfig to
	// DefaultLogger, a no-op.
	Logger Logger

	// DefaultErrorPolicy is the error policy a Processor uses when it has
	// not set its own via SetErrorPolicy. Set by NewConfig to Propagate.
	DefaultErrorPolicy ErrorPolicy
}

// NewConfig returns a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Clock:              clockz.RealClock,
		Logger:             DefaultLogger(),
		DefaultErrorPolicy: Propagate,
	}
}

// Option mutates a Pipeline's Config at construction time.
type Option[F any] func(*Config)

// WithClock overrides the pipeline's timestamp source.
func WithClock[F any](clock clockz.Clock) Option[F] {
	return func(c *Config) { c.Clock = clock }
}

// WithLogger overrides the pipeline's operational logger.
func WithLogger[F any](logger Logger) Option[F] {
	return func(c *Config) { c.Logger = logger }
}

// WithDefaultErrorPolicy overrides the pipeline-wide default error policy.
func WithDefaultErrorPolicy[F any](policy ErrorPolicy) Option[F] {
	return func(c *Config) { c.DefaultErrorPolicy = policy }
}
