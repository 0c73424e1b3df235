// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys. All share the PLAYER_ prefix.
const (
	EnvLogLevel          = "PLAYER_LOG_LEVEL"
	EnvLogService        = "PLAYER_LOG_SERVICE"
	EnvListenAddr        = "PLAYER_LISTEN_ADDR"
	EnvRateLimitRPM      = "PLAYER_RATE_LIMIT_RPM"
	EnvDRMTimeout        = "PLAYER_DRM_TIMEOUT"
	EnvHeartbeatInterval = "PLAYER_HEARTBEAT_INTERVAL"
	EnvQueueSize         = "PLAYER_QUEUE_SIZE"

	EnvLicenseURL              = "PLAYER_LICENSE_URL"
	EnvLicenseBreakerThreshold = "PLAYER_LICENSE_BREAKER_THRESHOLD"
	EnvLicenseBreakerReset     = "PLAYER_LICENSE_BREAKER_RESET"

	EnvRedisEnabled  = "PLAYER_REDIS_ENABLED"
	EnvRedisAddr     = "PLAYER_REDIS_ADDR"
	EnvRedisPassword = "PLAYER_REDIS_PASSWORD"
	EnvRedisDB       = "PLAYER_REDIS_DB"
	EnvRedisStream   = "PLAYER_REDIS_STREAM"
	EnvRedisMaxLen   = "PLAYER_REDIS_MAXLEN"

	EnvTracingEnabled      = "PLAYER_TRACING_ENABLED"
	EnvTracingExporter     = "PLAYER_TRACING_EXPORTER"
	EnvTracingEndpoint     = "PLAYER_TRACING_ENDPOINT"
	EnvTracingSamplingRate = "PLAYER_TRACING_SAMPLING_RATE"
	EnvTracingEnvironment  = "PLAYER_TRACING_ENVIRONMENT"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is fixed: defaults, strict file parse, env overrides, validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:          "info",
		LogService:        "playerd",
		ListenAddr:        ":8088",
		DRMTimeout:        10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		QueueSize:         256,
		RateLimitRPM:      600,
		License: LicenseConfig{
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:   "127.0.0.1:6379",
			Stream: "player:events",
			MaxLen: 100000,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogService != "" {
		dst.LogService = src.LogService
	}

	if src.Server.ListenAddr != "" {
		dst.ListenAddr = expandEnv(src.Server.ListenAddr)
	}
	if src.Server.RateLimitRPM != nil {
		dst.RateLimitRPM = *src.Server.RateLimitRPM
	}

	if src.Player.DRMTimeout != 0 {
		dst.DRMTimeout = src.Player.DRMTimeout
	}
	if src.Player.HeartbeatInterval != 0 {
		dst.HeartbeatInterval = src.Player.HeartbeatInterval
	}
	if src.Player.QueueSize != 0 {
		dst.QueueSize = src.Player.QueueSize
	}

	if src.License.URL != "" {
		dst.License.URL = expandEnv(src.License.URL)
	}
	if src.License.BreakerThreshold != 0 {
		dst.License.BreakerThreshold = src.License.BreakerThreshold
	}
	if src.License.BreakerReset != 0 {
		dst.License.BreakerReset = src.License.BreakerReset
	}

	if src.Redis.Enabled != nil {
		dst.Redis.Enabled = *src.Redis.Enabled
	}
	if src.Redis.Addr != "" {
		dst.Redis.Addr = expandEnv(src.Redis.Addr)
	}
	if src.Redis.Password != "" {
		dst.Redis.Password = expandEnv(src.Redis.Password)
	}
	if src.Redis.DB != nil {
		dst.Redis.DB = *src.Redis.DB
	}
	if src.Redis.Stream != "" {
		dst.Redis.Stream = src.Redis.Stream
	}
	if src.Redis.MaxLen != nil {
		dst.Redis.MaxLen = *src.Redis.MaxLen
	}

	if src.Tracing.Enabled != nil {
		dst.Tracing.Enabled = *src.Tracing.Enabled
	}
	if src.Tracing.Exporter != "" {
		dst.Tracing.Exporter = src.Tracing.Exporter
	}
	if src.Tracing.Endpoint != "" {
		dst.Tracing.Endpoint = expandEnv(src.Tracing.Endpoint)
	}
	if src.Tracing.SamplingRate != nil {
		dst.Tracing.SamplingRate = *src.Tracing.SamplingRate
	}
	if src.Tracing.Environment != "" {
		dst.Tracing.Environment = src.Tracing.Environment
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)
	cfg.ListenAddr = l.envString(EnvListenAddr, cfg.ListenAddr)
	cfg.RateLimitRPM = l.envInt(EnvRateLimitRPM, cfg.RateLimitRPM)
	cfg.DRMTimeout = l.envDuration(EnvDRMTimeout, cfg.DRMTimeout)
	cfg.HeartbeatInterval = l.envDuration(EnvHeartbeatInterval, cfg.HeartbeatInterval)
	cfg.QueueSize = l.envInt(EnvQueueSize, cfg.QueueSize)

	cfg.License.URL = l.envString(EnvLicenseURL, cfg.License.URL)
	cfg.License.BreakerThreshold = l.envInt(EnvLicenseBreakerThreshold, cfg.License.BreakerThreshold)
	cfg.License.BreakerReset = l.envDuration(EnvLicenseBreakerReset, cfg.License.BreakerReset)

	cfg.Redis.Enabled = l.envBool(EnvRedisEnabled, cfg.Redis.Enabled)
	cfg.Redis.Addr = l.envString(EnvRedisAddr, cfg.Redis.Addr)
	cfg.Redis.Password = l.envString(EnvRedisPassword, cfg.Redis.Password)
	cfg.Redis.DB = l.envInt(EnvRedisDB, cfg.Redis.DB)
	cfg.Redis.Stream = l.envString(EnvRedisStream, cfg.Redis.Stream)
	cfg.Redis.MaxLen = l.envInt64(EnvRedisMaxLen, cfg.Redis.MaxLen)

	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSamplingRate, cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = l.envString(EnvTracingEnvironment, cfg.Tracing.Environment)
}
