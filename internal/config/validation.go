// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/playerplatform/internal/validate"
)

// Validate checks every field and reports all failures in one
// validate.ValidationError.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", "must be one of "+strings.Join(validate.LogLevels(), ", "), cfg.LogLevel)
	}
	v.NotEmpty("LogService", cfg.LogService)
	v.HostPort("ListenAddr", cfg.ListenAddr)
	v.NonNegative("RateLimitRPM", cfg.RateLimitRPM)

	v.DurationRange("DRMTimeout", cfg.DRMTimeout, 100*time.Millisecond, 5*time.Minute)
	v.DurationRange("HeartbeatInterval", cfg.HeartbeatInterval, time.Second, time.Hour)
	v.Range("QueueSize", cfg.QueueSize, 1, 1<<16)

	if cfg.License.URL != "" {
		v.URL("License.URL", cfg.License.URL, []string{"http", "https"})
		v.Positive("License.BreakerThreshold", cfg.License.BreakerThreshold)
		v.DurationRange("License.BreakerReset", cfg.License.BreakerReset, time.Second, time.Hour)
	}

	if cfg.Redis.Enabled {
		v.HostPort("Redis.Addr", cfg.Redis.Addr)
		v.Range("Redis.DB", cfg.Redis.DB, 0, 15)
		v.NotEmpty("Redis.Stream", cfg.Redis.Stream)
		v.Custom("Redis.MaxLen", cfg.Redis.MaxLen, func(value any) error {
			if n, _ := value.(int64); n < 0 {
				return fmt.Errorf("value cannot be negative, got %d", n)
			}
			return nil
		})
	}

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		v.Fraction("Tracing.SamplingRate", cfg.Tracing.SamplingRate)
	}

	return v.Err()
}
