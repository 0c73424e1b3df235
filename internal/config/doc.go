// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the player daemon configuration with precedence
// ENV > file > defaults. Files are strict single-document YAML.
package config
