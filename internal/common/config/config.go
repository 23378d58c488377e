// Package config loads runtime configuration for the bus from environment
// variables, an optional config file, and documented defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TransportConfig controls the framed transport's listening socket.
type TransportConfig struct {
	SocketPath     string `mapstructure:"socket_path"`
	MaxFrameBytes  int    `mapstructure:"max_frame_bytes"`
	DialTimeoutSec int    `mapstructure:"dial_timeout_seconds"`
}

// DialTimeout returns DialTimeoutSec as a time.Duration.
func (c TransportConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSec) * time.Second
}

// BridgeConfig controls the per-worker-process bridge.
type BridgeConfig struct {
	HeartbeatIntervalSec int `mapstructure:"heartbeat_interval_seconds"`
	HeartbeatRetryDelay  int `mapstructure:"heartbeat_retry_delay_seconds"`
	ActiveTaskSoftCap    int `mapstructure:"active_task_soft_cap"`
	ConversationCacheCap int `mapstructure:"conversation_cache_capacity"`
}

func (c BridgeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c BridgeConfig) HeartbeatRetryDelayDuration() time.Duration {
	return time.Duration(c.HeartbeatRetryDelay) * time.Second
}

// RouterConfig controls the agent manager/router.
type RouterConfig struct {
	DefaultPriority int `mapstructure:"default_priority"`
}

// ToolsConfig controls the tool registry's ambient tools.
type ToolsConfig struct {
	CodeExecTimeoutSec int    `mapstructure:"code_exec_timeout_seconds"`
	DisplayWidth       int    `mapstructure:"display_width"`
	DisplayHeight      int    `mapstructure:"display_height"`
	AllowedRoots       string `mapstructure:"allowed_roots"`
}

// DockerConfig controls the optional Docker-backed code-execution sandbox.
// When Enabled is false (the default) execute-code falls back to a local
// subprocess launcher.
type DockerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	APIVersion string `mapstructure:"api_version"`
	Image      string `mapstructure:"image"`
}

func (c ToolsConfig) CodeExecTimeout() time.Duration {
	return time.Duration(c.CodeExecTimeoutSec) * time.Second
}

// AllowedRootsList splits the comma-separated AllowedRoots setting.
func (c ToolsConfig) AllowedRootsList() []string {
	parts := strings.Split(c.AllowedRoots, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NATSConfig controls the optional event-bus fan-out.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// ServerConfig controls the optional debug/status HTTP surface.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeoutSec  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSec int `mapstructure:"write_timeout_seconds"`
}

func (c ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

func (c ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// Config is the root configuration object.
type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Router    RouterConfig    `mapstructure:"router"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Server    ServerConfig    `mapstructure:"server"`
}

// Load reads configuration from MCPBUS_-prefixed environment variables, an
// optional config file named mcpbus.yaml on the search path, and falls back
// to documented defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MCPBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mcpbus")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mcpbus")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.socket_path", "/tmp/cartrita_mcp.sock")
	v.SetDefault("transport.max_frame_bytes", 10*1024*1024)
	v.SetDefault("transport.dial_timeout_seconds", 10)

	v.SetDefault("bridge.heartbeat_interval_seconds", 30)
	v.SetDefault("bridge.heartbeat_retry_delay_seconds", 5)
	v.SetDefault("bridge.active_task_soft_cap", 10)
	v.SetDefault("bridge.conversation_cache_capacity", 1000)

	v.SetDefault("router.default_priority", 5)

	v.SetDefault("tools.code_exec_timeout_seconds", 30)
	v.SetDefault("tools.display_width", 1920)
	v.SetDefault("tools.display_height", 1080)
	v.SetDefault("tools.allowed_roots", "/tmp,/home,/var/tmp")

	v.SetDefault("docker.enabled", false)
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.api_version", "")
	v.SetDefault("docker.image", "python:3.12-slim")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.enabled", false)

	v.SetDefault("server.port", 8083)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
}
