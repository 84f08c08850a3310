// Package config loads uibridge settings from defaults, an optional YAML
// file and UIBRIDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mj1618/uibridge/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. UIBRIDGE_AGENT_SOCKET.
const EnvPrefix = "UIBRIDGE"

// Config is the full settings tree.
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Agent   AgentConfig    `mapstructure:"agent"`
	Tree    TreeConfig     `mapstructure:"tree"`
	Wait    WaitConfig     `mapstructure:"wait"`
	Log     logging.Config `mapstructure:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Server  ServerConfig   `mapstructure:"server"`
}

// AppConfig selects the target application.
type AppConfig struct {
	Name string `mapstructure:"name"` // accessible name and socket base name
	PID  int    `mapstructure:"pid"`
}

// AgentConfig tunes the agent channel.
type AgentConfig struct {
	Socket      string        `mapstructure:"socket"` // empty: derive from app.name
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MinBackoff  time.Duration `mapstructure:"min_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	MaxFrame    int           `mapstructure:"max_frame"`
	InputRate   float64       `mapstructure:"input_rate"` // events per second, 0 = unlimited
	InputBurst  int           `mapstructure:"input_burst"`
}

// TreeConfig tunes the indexer.
type TreeConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"` // negative disables the cache
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MaxNodes    int           `mapstructure:"max_nodes"`
}

// WaitConfig holds the poll defaults.
type WaitConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig exposes Prometheus metrics on Addr when set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	Transport string  `mapstructure:"transport"` // stdio | streamable-http
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // HTTP requests per second, 0 = unlimited
	Burst     int     `mapstructure:"burst"`
}

// Transports accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

const minMaxFrame = 1 << 10

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "uibridge")
	v.SetDefault("app.pid", 0)
	v.SetDefault("agent.socket", "")
	v.SetDefault("agent.dial_timeout", time.Second)
	v.SetDefault("agent.call_timeout", 10*time.Second)
	v.SetDefault("agent.min_backoff", 100*time.Millisecond)
	v.SetDefault("agent.max_backoff", 2*time.Second)
	v.SetDefault("agent.max_frame", 16<<20)
	v.SetDefault("agent.input_rate", 0.0)
	v.SetDefault("agent.input_burst", 1)
	v.SetDefault("tree.cache_ttl", 250*time.Millisecond)
	v.SetDefault("tree.call_timeout", 2*time.Second)
	v.SetDefault("tree.max_nodes", 10000)
	v.SetDefault("wait.timeout", 5*time.Second)
	v.SetDefault("wait.interval", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatJSON)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.burst", 20)
}

// DefaultPath is $XDG_CONFIG_HOME/uibridge/config.yaml, falling back to
// the user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "uibridge", "config.yaml")
}

// Load reads configuration. An explicit path must exist; the default path
// is optional. flags, when non-nil, override file and environment values
// for the keys they are bound to.
func Load(path string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if flags != nil {
		for key, name := range bindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	var problems []string
	positive := map[string]time.Duration{
		"agent.dial_timeout": c.Agent.DialTimeout,
		"agent.call_timeout": c.Agent.CallTimeout,
		"agent.min_backoff":  c.Agent.MinBackoff,
		"agent.max_backoff":  c.Agent.MaxBackoff,
		"tree.call_timeout":  c.Tree.CallTimeout,
		"wait.timeout":       c.Wait.Timeout,
		"wait.interval":      c.Wait.Interval,
	}
	for _, key := range slices.Sorted(maps.Keys(positive)) {
		if positive[key] <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", key))
		}
	}
	if c.Agent.MaxBackoff < c.Agent.MinBackoff {
		problems = append(problems, "agent.max_backoff must not be below agent.min_backoff")
	}
	if c.Agent.MaxFrame < minMaxFrame {
		problems = append(problems, fmt.Sprintf("agent.max_frame must be at least %d", minMaxFrame))
	}
	if c.Agent.InputRate < 0 {
		problems = append(problems, "agent.input_rate must not be negative")
	}
	if c.Tree.MaxNodes <= 0 {
		problems = append(problems, "tree.max_nodes must be positive")
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		problems = append(problems, fmt.Sprintf("server.transport %q is not one of %s, %s", c.Server.Transport, TransportStdio, TransportHTTP))
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "server.rate_limit must not be negative")
	}
	if err := c.Log.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
