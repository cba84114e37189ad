package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStreamBaseDelay   = 1 * time.Second
	DefaultStreamMaxAttempts = 5
	DefaultWatcherInterval   = 5 * time.Second
	DefaultGatewayTimeout    = 10 * time.Second
	DefaultRateLimit         = 20.0
	DefaultRateBurst         = 40
)

// Duration accepts time.ParseDuration strings ("1500ms", "2s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

type Stream struct {
	BaseDelay   Duration `yaml:"baseDelay"`
	MaxAttempts int      `yaml:"maxAttempts"`
}

type Watcher struct {
	Interval Duration `yaml:"interval"`
}

type Gateway struct {
	Timeout   Duration `yaml:"timeout"`
	RateLimit float64  `yaml:"rateLimit"`
	RateBurst int      `yaml:"rateBurst"`

	// Endpoints that need character_id attached explicitly because the
	// backend cannot scope them from the credential alone.
	CharacterParamPaths []string `yaml:"characterParamPaths"`
}

type Dashboard struct {
	BaseURL     string            `yaml:"baseUrl"`
	LoginURL    string            `yaml:"loginUrl"`
	ExchangeURL string            `yaml:"exchangeUrl"`
	SessionFile string            `yaml:"sessionFile"`
	Feeds       map[string]string `yaml:"feeds"`
	Gateway     Gateway           `yaml:"gateway"`
	Stream      Stream            `yaml:"stream"`
	Watcher     Watcher           `yaml:"watcher"`
}

var (
	ErrConfigFileMissing        = errors.New("config file is missing")
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrBaseURLMissing           = errors.New("baseUrl is missing in config")
	ErrLoginURLMissing          = errors.New("loginUrl is missing in config")
	ErrExchangeURLMissing       = errors.New("exchangeUrl is missing in config")
	ErrSessionFileMissing       = errors.New("sessionFile is missing in config")
	ErrNoFeeds                  = errors.New("no feeds defined in config")
)

// Load reads and validates a dashboard configuration, filling defaults for
// the tunables.
func Load(path string) (*Dashboard, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileMissing
		}
		return nil, ErrConfigFileUnreadable
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrConfigFileUnreadable
	}

	var cfg Dashboard
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFileUnmarshallable, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Dashboard) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLMissing
	}
	if c.LoginURL == "" {
		return ErrLoginURLMissing
	}
	if c.ExchangeURL == "" {
		return ErrExchangeURLMissing
	}
	if c.SessionFile == "" {
		return ErrSessionFileMissing
	}
	if len(c.Feeds) == 0 {
		return ErrNoFeeds
	}

	if c.Stream.BaseDelay <= 0 {
		c.Stream.BaseDelay = Duration(DefaultStreamBaseDelay)
	}
	if c.Stream.MaxAttempts <= 0 {
		c.Stream.MaxAttempts = DefaultStreamMaxAttempts
	}
	if c.Watcher.Interval <= 0 {
		c.Watcher.Interval = Duration(DefaultWatcherInterval)
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = Duration(DefaultGatewayTimeout)
	}
	if c.Gateway.RateLimit <= 0 {
		c.Gateway.RateLimit = DefaultRateLimit
	}
	if c.Gateway.RateBurst <= 0 {
		c.Gateway.RateBurst = DefaultRateBurst
	}
	return nil
}
