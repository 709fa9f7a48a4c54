// Package config parses datausage.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level datausage.toml configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Device DeviceConfig `toml:"device"`
	Remote RemoteConfig `toml:"remote"`
	Sync   SyncConfig   `toml:"sync"`
}

// ServerConfig controls `datausage serve`.
type ServerConfig struct {
	Addr        string     `toml:"addr"`
	DatabaseURL string     `toml:"database_url"`
	TokenHashes []string   `toml:"token_hashes"` // bcrypt hashes from `datausage hash-token`
	OIDC        OIDCConfig `toml:"oidc"`
}

// OIDCConfig enables ID-token bearer auth when Issuer is set.
type OIDCConfig struct {
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`
}

// DeviceConfig controls the local side.
type DeviceConfig struct {
	DatabasePath string `toml:"database_path"`
	LogLevel     string `toml:"log_level"`
}

// RemoteConfig selects and configures the remote store the device syncs to.
type RemoteConfig struct {
	Kind        string       `toml:"kind"` // "http" or "postgres"
	URL         string       `toml:"url"`
	Token       string       `toml:"token"`
	DatabaseURL string       `toml:"database_url"`
	OAuth2      OAuth2Config `toml:"oauth2"`
}

// OAuth2Config enables the client credentials flow when ClientID is set.
type OAuth2Config struct {
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// SyncConfig controls `datausage sync --watch`.
type SyncConfig struct {
	IntervalSeconds     int `toml:"interval_seconds"`
	MinChangeGapSeconds int `toml:"min_change_gap_seconds"`
}

const (
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

// Defaults returns a Config usable for a single machine running both sides.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Device: DeviceConfig{
			DatabasePath: "datausage.db",
			LogLevel:     "info",
		},
		Remote: RemoteConfig{
			Kind: RemoteHTTP,
			URL:  "http://localhost:8080",
		},
		Sync: SyncConfig{
			IntervalSeconds:     900,
			MinChangeGapSeconds: 5,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = env("ADDR", c.Server.Addr)
	c.Server.DatabaseURL = env("DATABASE_URL", c.Server.DatabaseURL)
	c.Remote.URL = env("DATAUSAGE_REMOTE_URL", c.Remote.URL)
	c.Remote.Token = env("DATAUSAGE_REMOTE_TOKEN", c.Remote.Token)
	c.Remote.OAuth2.ClientSecret = env("DATAUSAGE_OAUTH2_CLIENT_SECRET", c.Remote.OAuth2.ClientSecret)
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.OIDC.Issuer != "" {
		if !isHTTPURL(c.Server.OIDC.Issuer) {
			errs = append(errs, errors.New("server.oidc.issuer must be a valid http or https URL"))
		}
		if c.Server.OIDC.Audience == "" {
			errs = append(errs, errors.New("server.oidc.audience must be set when server.oidc.issuer is set"))
		}
	}

	if c.Device.DatabasePath == "" {
		errs = append(errs, errors.New("device.database_path must not be empty"))
	}
	if _, err := parseLevel(c.Device.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.Remote.Kind {
	case RemoteHTTP:
		if !isHTTPURL(c.Remote.URL) {
			errs = append(errs, errors.New("remote.url must be a valid http or https URL"))
		}
	case RemotePostgres:
		if c.Remote.DatabaseURL == "" {
			errs = append(errs, errors.New("remote.database_url must be set when remote.kind is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.kind must be %q or %q", RemoteHTTP, RemotePostgres))
	}
	if c.Remote.OAuth2.ClientID != "" && !isHTTPURL(c.Remote.OAuth2.TokenURL) {
		errs = append(errs, errors.New("remote.oauth2.token_url must be a valid http or https URL when client_id is set"))
	}

	if c.Sync.IntervalSeconds < 1 {
		errs = append(errs, errors.New("sync.interval_seconds must be >= 1"))
	}
	if c.Sync.MinChangeGapSeconds < 0 {
		errs = append(errs, errors.New("sync.min_change_gap_seconds must be >= 0"))
	}

	return errors.Join(errs...)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Device.LogLevel)
	return l
}

// Interval returns the periodic sync interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// MinChangeGap returns the minimum gap between change-triggered syncs.
func (c *Config) MinChangeGap() time.Duration {
	return time.Duration(c.Sync.MinChangeGapSeconds) * time.Second
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("device.log_level must be one of debug, info, warn, error")
	}
	return l, nil
}

func isHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// InitFile writes a default datausage.toml template to path.
func InitFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	content := `# datausage.toml

[server]
addr = ":8080"
database_url = ""   # or DATABASE_URL
token_hashes = []   # output of ` + "`datausage hash-token`" + `

[server.oidc]
issuer = ""         # empty = OIDC disabled
audience = ""

[device]
database_path = "datausage.db"
log_level = "info"  # debug, info, warn, error

[remote]
kind = "http"       # http or postgres
url = "http://localhost:8080"
token = ""          # or DATAUSAGE_REMOTE_TOKEN
database_url = ""   # used when kind = "postgres"

[remote.oauth2]
token_url = ""      # client credentials flow when client_id is set
client_id = ""
client_secret = ""
scopes = []

[sync]
interval_seconds = 900
min_change_gap_seconds = 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
