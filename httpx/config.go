package httpx

import (
	"crypto/tls"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk shape for client tuning, parsed with
// github.com/pelletier/go-toml/v2 the same way resterm loads its
// request collections from TOML.
type Config struct {
	MaxConnectionsPerHost int  `toml:"max_connections_per_host"`
	StallTimeoutSeconds   int  `toml:"stall_timeout_seconds"`
	DialTimeoutSeconds    int  `toml:"dial_timeout_seconds"`
	PreferIOUring         bool `toml:"prefer_io_uring"`
	MaxAttempts           int  `toml:"max_attempts"`
	TLS                   struct {
		InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
		ServerName         string `toml:"server_name"`
	} `toml:"tls"`
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientOptions adapts a parsed Config into runtime options for NewClient.
func (cfg *Config) ClientOptions() ClientOptions {
	opts := ClientOptions{
		MaxConnectionsPerHost: cfg.MaxConnectionsPerHost,
		StallTimeout:          time.Duration(cfg.StallTimeoutSeconds) * time.Second,
		DialTimeout:           time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		PreferIOUring:         cfg.PreferIOUring,
		MaxAttempts:           cfg.MaxAttempts,
	}
	if cfg.TLS.InsecureSkipVerify || cfg.TLS.ServerName != "" {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			ServerName:         cfg.TLS.ServerName,
		}
	}
	return opts
}
