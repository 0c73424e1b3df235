// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	Version string

	LogLevel   string
	LogService string

	ListenAddr        string
	DRMTimeout        time.Duration
	HeartbeatInterval time.Duration
	QueueSize         int
	RateLimitRPM      int

	License LicenseConfig
	Redis   RedisConfig
	Tracing TracingConfig
}

// LicenseConfig configures the upstream DRM license server. An empty URL
// disables server-driven authorization.
type LicenseConfig struct {
	URL              string
	BreakerThreshold int
	BreakerReset     time.Duration
}

// RedisConfig configures the analytics stream sink.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// FileConfig is the on-disk YAML shape. Pointer fields distinguish "unset"
// from an explicit zero.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Server  ServerFileConfig  `yaml:"server,omitempty"`
	Player  PlayerFileConfig  `yaml:"player,omitempty"`
	License LicenseFileConfig `yaml:"license,omitempty"`
	Redis   RedisFileConfig   `yaml:"redis,omitempty"`
	Tracing TracingFileConfig `yaml:"tracing,omitempty"`
}

type ServerFileConfig struct {
	ListenAddr   string `yaml:"listenAddr,omitempty"`
	RateLimitRPM *int   `yaml:"rateLimitRPM,omitempty"`
}

type PlayerFileConfig struct {
	DRMTimeout        time.Duration `yaml:"drmTimeout,omitempty"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval,omitempty"`
	QueueSize         int           `yaml:"queueSize,omitempty"`
}

type LicenseFileConfig struct {
	URL              string        `yaml:"url,omitempty"`
	BreakerThreshold int           `yaml:"breakerThreshold,omitempty"`
	BreakerReset     time.Duration `yaml:"breakerReset,omitempty"`
}

type RedisFileConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
	Stream   string `yaml:"stream,omitempty"`
	MaxLen   *int64 `yaml:"maxLen,omitempty"`
}

type TracingFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}
