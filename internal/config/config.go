// Package config loads the relay's runtime configuration from the
// environment, falling back to the defaults fixed by the wire spec.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-tunable setting the relay reads at
// startup. The operator-visible contract only names PORT; everything
// else here is an internal tuning knob layered on top of the built-in
// constants the relay protocol fixes.
type Config struct {
	Server ServerConfig
	Safety SafetyConfig
	Reaper ReaperConfig
	Redis  RedisConfig
	Log    LogConfig
}

// ServerConfig holds HTTP/WebSocket bind settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// SafetyConfig holds the command-clamping bounds. These match the
// spec's built-in constants by default and are not meant to be
// operator-configurable in production, but are exposed as env
// overrides for testing.
type SafetyConfig struct {
	MaxLinearVelocity    float64 `mapstructure:"max_linear_vel"`
	MaxAngularVelocity   float64 `mapstructure:"max_angular_vel"`
	ControlIdleTimeoutMs int     `mapstructure:"control_idle_timeout_ms"`
	RobotTimeoutMs       int     `mapstructure:"robot_timeout_ms"`
	PingIntervalMs       int     `mapstructure:"ping_interval_ms"`
}

// ReaperConfig holds the periods of the two background reap loops.
type ReaperConfig struct {
	StaleIntervalMs int `mapstructure:"stale_interval_ms"`
	IdleIntervalMs  int `mapstructure:"idle_interval_ms"`
}

// RedisConfig holds the optional telemetry/event mirror settings. An
// empty URL disables the mirror; the relay runs in degraded mode.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func (s *SafetyConfig) ControlIdleTimeout() time.Duration {
	return time.Duration(s.ControlIdleTimeoutMs) * time.Millisecond
}

func (s *SafetyConfig) RobotTimeout() time.Duration {
	return time.Duration(s.RobotTimeoutMs) * time.Millisecond
}

func (s *SafetyConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalMs) * time.Millisecond
}

func (r *ReaperConfig) StaleInterval() time.Duration {
	return time.Duration(r.StaleIntervalMs) * time.Millisecond
}

func (r *ReaperConfig) IdleInterval() time.Duration {
	return time.Duration(r.IdleIntervalMs) * time.Millisecond
}

// Load reads configuration from the environment, applying the spec's
// built-in constants as defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("RELAY_HOST", "0.0.0.0")

	v.SetDefault("RELAY_MAX_LINEAR_VEL", 0.5)
	v.SetDefault("RELAY_MAX_ANGULAR_VEL", 1.5)
	v.SetDefault("RELAY_CONTROL_IDLE_TIMEOUT_MS", 60000)
	v.SetDefault("RELAY_ROBOT_TIMEOUT_MS", 60000)
	v.SetDefault("RELAY_PING_INTERVAL_MS", 30000)

	v.SetDefault("RELAY_STALE_REAP_INTERVAL_MS", 30000)
	v.SetDefault("RELAY_IDLE_REAP_INTERVAL_MS", 10000)

	v.SetDefault("REDIS_URL", "")

	v.SetDefault("RELAY_LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("PORT"),
			Host: v.GetString("RELAY_HOST"),
		},
		Safety: SafetyConfig{
			MaxLinearVelocity:    v.GetFloat64("RELAY_MAX_LINEAR_VEL"),
			MaxAngularVelocity:   v.GetFloat64("RELAY_MAX_ANGULAR_VEL"),
			ControlIdleTimeoutMs: v.GetInt("RELAY_CONTROL_IDLE_TIMEOUT_MS"),
			RobotTimeoutMs:       v.GetInt("RELAY_ROBOT_TIMEOUT_MS"),
			PingIntervalMs:       v.GetInt("RELAY_PING_INTERVAL_MS"),
		},
		Reaper: ReaperConfig{
			StaleIntervalMs: v.GetInt("RELAY_STALE_REAP_INTERVAL_MS"),
			IdleIntervalMs:  v.GetInt("RELAY_IDLE_REAP_INTERVAL_MS"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Log: LogConfig{
			Level: v.GetString("RELAY_LOG_LEVEL"),
		},
	}

	return cfg, nil
}
