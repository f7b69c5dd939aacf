// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for muse.
//
// Configuration is TOML, with sensible defaults, .env support, environment
// variable overrides, and validation. There is no process-wide instance: the
// loaded *Config is passed explicitly to whatever needs it.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ModelConfig: Model name, endpoint and inference options
//   - StreamConfig: Reveal pacing and stall handling
//   - ValidateErrors: Every problem found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MUSE_API, MUSE_MODEL, MUSE_LOG_LEVEL)
//   - .env in the working directory, then ~/.muse/.env
//   - ~/.muse/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits while running:
//
//	go config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
