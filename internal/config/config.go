package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

var sessionNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Duration wraps time.Duration so it can be written as "25s" in config.toml.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func seconds(n int) Duration {
	return Duration{time.Duration(n) * time.Second}
}

// Engine holds connection settings for the remote automation service.
type Engine struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// Name is an optional engine hint sent when creating a session
	// (some deployments run multiple engine implementations).
	Name string `toml:"name"`
}

// HTTP holds the local server settings: caller-facing API, webhook
// ingestion endpoint and the realtime websocket feed.
type HTTP struct {
	ListenAddr string `toml:"listen_addr"`
	// WebhookURL is the externally reachable URL of POST /webhook,
	// registered with the engine after a session start.
	WebhookURL     string `toml:"webhook_url"`
	AllowAnyOrigin bool   `toml:"allow_any_origin"`
}

// Forwarder holds settings for the downstream image-message collaborator.
type Forwarder struct {
	// MonitorURL receives image-message metadata from group chats.
	// Empty disables forwarding.
	MonitorURL string   `toml:"monitor_url"`
	Timeout    Duration `toml:"timeout"`
}

// Tuning groups the operational timing knobs. The defaults are tunings
// observed against slow engine deployments, not hard requirements.
type Tuning struct {
	HealthProbeTimeout Duration `toml:"health_probe_timeout"`
	HealthCacheTTL     Duration `toml:"health_cache_ttl"`
	StatusCacheTTL     Duration `toml:"status_cache_ttl"`

	StartAttempts int      `toml:"start_attempts"`
	StartBackoff  Duration `toml:"start_backoff"`
	RestartGrace  Duration `toml:"restart_grace"`

	QRCooldown     Duration `toml:"qr_cooldown"`
	QRReuseWindow  Duration `toml:"qr_reuse_window"`
	QRWaitTimeout  Duration `toml:"qr_wait_timeout"`
	QRPollInterval Duration `toml:"qr_poll_interval"`

	ListLongTimeout   Duration `toml:"list_long_timeout"`
	ListMediumTimeout Duration `toml:"list_medium_timeout"`
	ListShortTimeout  Duration `toml:"list_short_timeout"`
	ListRetryDelay    Duration `toml:"list_retry_delay"`
	ChatCap           int      `toml:"chat_cap"`

	SendTimeout     Duration `toml:"send_timeout"`
	CallTimeout     Duration `toml:"call_timeout"`
	MonitorInterval Duration `toml:"monitor_interval"`
}

// Config is the full gateway configuration (~/.wagate/config.toml).
type Config struct {
	Session   string    `toml:"session"`
	Engine    Engine    `toml:"engine"`
	HTTP      HTTP      `toml:"http"`
	Forwarder Forwarder `toml:"forwarder"`
	Tuning    Tuning    `toml:"tuning"`
}

// Default returns the baseline configuration. Load overlays the config
// file on top of it, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Session: "default",
		Engine: Engine{
			BaseURL: "http://localhost:3000",
		},
		HTTP: HTTP{
			ListenAddr: ":8777",
		},
		Forwarder: Forwarder{
			Timeout: seconds(10),
		},
		Tuning: Tuning{
			HealthProbeTimeout: seconds(5),
			HealthCacheTTL:     seconds(30),
			StatusCacheTTL:     seconds(10),

			StartAttempts: 3,
			StartBackoff:  seconds(2),
			RestartGrace:  seconds(3),

			QRCooldown:     seconds(5),
			QRReuseWindow:  seconds(25),
			QRWaitTimeout:  seconds(30),
			QRPollInterval: seconds(2),

			ListLongTimeout:   seconds(90),
			ListMediumTimeout: seconds(60),
			ListShortTimeout:  seconds(30),
			ListRetryDelay:    seconds(3),
			ChatCap:           300,

			SendTimeout:     seconds(30),
			CallTimeout:     seconds(30),
			MonitorInterval: seconds(5),
		},
	}
}

// Load reads config from path on top of Default. A missing file is not
// an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the gateway cannot run without.
func (c *Config) Validate() error {
	if !sessionNameRegexp.MatchString(c.Session) {
		return fmt.Errorf("invalid session name %q: must match %s", c.Session, sessionNameRegexp)
	}
	u, err := url.Parse(c.Engine.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid engine base_url %q", c.Engine.BaseURL)
	}
	if c.HTTP.WebhookURL != "" {
		if wu, err := url.Parse(c.HTTP.WebhookURL); err != nil || wu.Scheme == "" || wu.Host == "" {
			return fmt.Errorf("invalid webhook_url %q", c.HTTP.WebhookURL)
		}
	}
	if c.Tuning.StartAttempts < 1 {
		return fmt.Errorf("start_attempts must be >= 1, got %d", c.Tuning.StartAttempts)
	}
	if c.Tuning.ChatCap < 1 {
		return fmt.Errorf("chat_cap must be >= 1, got %d", c.Tuning.ChatCap)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
