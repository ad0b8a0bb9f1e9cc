package tangguh

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CircuitBreakerSettings configures the breaker from YAML.
type CircuitBreakerSettings struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
	SuccessThreshold int      `yaml:"success_threshold"`
}

// CacheSettings configures the response cache from YAML.
type CacheSettings struct {
	TTL     Duration `yaml:"ttl"`
	MaxSize int      `yaml:"max_size"`
}

// RateLimitSettings configures the client-side rate limiter from YAML.
type RateLimitSettings struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Config is the declarative counterpart of the functional options,
// loadable from YAML. Zero values mean "use the library default"; pointer
// fields distinguish "unset" from an explicit false.
type Config struct {
	BaseURL                 string                 `yaml:"base_url"`
	Timeout                 Duration               `yaml:"timeout"`
	MaxRetries              *int                   `yaml:"max_retries"`
	RetryBackoffFactor      Duration               `yaml:"retry_backoff_factor"`
	RetryJitter             float64                `yaml:"retry_jitter"`
	Headers                 map[string]string      `yaml:"headers"`
	VerifySSL               *bool                  `yaml:"verify_ssl"`
	FollowRedirects         *bool                  `yaml:"follow_redirects"`
	MaxConnections          int                    `yaml:"max_connections"`
	MaxKeepaliveConnections int                    `yaml:"max_keepalive_connections"`
	KeepaliveExpiry         Duration               `yaml:"keepalive_expiry"`
	CircuitBreaker          CircuitBreakerSettings `yaml:"circuit_breaker"`
	Cache                   CacheSettings          `yaml:"cache"`
	RateLimit               RateLimitSettings      `yaml:"rate_limit"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses YAML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Options lowers the config to the functional options it corresponds to.
// Only set fields produce options, so New(cfg.Options()...) composes with
// further explicit options.
func (c *Config) Options() []Option {
	var opts []Option

	if c.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.BaseURL))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout.Std()))
	}
	if c.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*c.MaxRetries))
	}
	if c.RetryBackoffFactor > 0 {
		opts = append(opts, WithBackoffFactor(c.RetryBackoffFactor.Std()))
	}
	if c.RetryJitter > 0 {
		opts = append(opts, WithRetryJitter(c.RetryJitter))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, WithDefaultHeaders(c.Headers))
	}
	if c.VerifySSL != nil {
		opts = append(opts, WithVerifySSL(*c.VerifySSL))
	}
	if c.FollowRedirects != nil {
		opts = append(opts, WithFollowRedirects(*c.FollowRedirects))
	}
	if c.MaxConnections > 0 || c.MaxKeepaliveConnections > 0 || c.KeepaliveExpiry > 0 {
		opts = append(opts, WithConnectionPool(
			c.MaxConnections, c.MaxKeepaliveConnections, c.KeepaliveExpiry.Std()))
	}
	if c.CircuitBreaker != (CircuitBreakerSettings{}) {
		opts = append(opts, WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  c.CircuitBreaker.RecoveryTimeout.Std(),
			SuccessThreshold: c.CircuitBreaker.SuccessThreshold,
		}))
	}
	if c.Cache.TTL > 0 {
		opts = append(opts, WithCache(c.Cache.TTL.Std(), c.Cache.MaxSize))
	}
	if c.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, WithRateLimit(c.RateLimit.RequestsPerSecond, c.RateLimit.Burst))
	}

	return opts
}
