// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/muse-tui/internal/ollama"
	"github.com/jeranaias/muse-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete muse configuration.
type Config struct {
	Version string `toml:"version"`

	// User identity shown in the chat view
	User UserConfig `toml:"user"`

	// Model and inference backend
	Model ModelConfig `toml:"model"`

	// Reveal pacing
	Stream StreamConfig `toml:"stream"`

	// Local conversation archive
	History HistoryConfig `toml:"history"`

	// Diagnostics
	Log LogConfig `toml:"log"`
}

// UserConfig contains user display settings.
type UserConfig struct {
	Name   string `toml:"name"`
	Avatar string `toml:"avatar"`
}

// ModelConfig contains model and request settings.
type ModelConfig struct {
	Name                 string  `toml:"name"`
	Endpoint             string  `toml:"endpoint"`
	Temperature          float64 `toml:"temperature"`
	ContextLength        int     `toml:"context_length"`
	SystemPromptOverride string  `toml:"system_prompt_override"`
	TopK                 int     `toml:"top_k"`
	TopP                 float64 `toml:"top_p"`
	RepeatPenalty        float64 `toml:"repeat_penalty"`
	NumThread            int     `toml:"num_thread"`
	F16KV                bool    `toml:"f16_kv"`
	TimeoutSecs          int     `toml:"timeout_secs"` // non-streaming requests only
}

// StreamConfig controls how responses are revealed.
type StreamConfig struct {
	FrameIntervalMs int `toml:"frame_interval_ms"`
	MaxBatch        int `toml:"max_batch"`
	ThinkingDelayMs int `toml:"thinking_delay_ms"`
	MaxStallSecs    int `toml:"max_stall_secs"`    // 0 disables the stall limit
	ResearchStageMs int `toml:"research_stage_ms"` // 0 skips the research status pauses
}

// HistoryConfig controls the conversation archive.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty means ~/.muse/history.db
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // empty discards logs in the TUI, stderr elsewhere
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// maxBatchLimit caps stream.max_batch, matching the scheduler's limit.
const maxBatchLimit = 64

// DefaultEndpoint is the local Ollama API.
const DefaultEndpoint = "http://localhost:11434"

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		User: UserConfig{
			Name: "Guest User",
		},

		Model: ModelConfig{
			Name:          "qwen2.5-coder:3b",
			Endpoint:      DefaultEndpoint,
			Temperature:   0.2,
			ContextLength: 2048,
			TopK:          20,
			TopP:          0.9,
			RepeatPenalty: 1.1,
			NumThread:     6,
			F16KV:         true,
			TimeoutSecs:   30,
		},

		Stream: StreamConfig{
			FrameIntervalMs: 16,
			MaxBatch:        64,
			ThinkingDelayMs: 400,
			MaxStallSecs:    0,
			ResearchStageMs: 1500,
		},

		History: HistoryConfig{
			Enabled: true,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the muse configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".muse"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath returns the archive location, resolving the default.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.muse/config.toml, falling back to defaults when it does not
// exist. .env files are read first and environment overrides applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadOrDefault(path)
}

// LoadOrDefault loads path if it exists, otherwise returns validated
// defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	LoadEnvFiles(filepath.Dir(path))

	if _, err := os.Stat(path); err == nil {
		return LoadFromPath(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation. Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// LoadEnvFiles reads .env from the working directory and from dir, without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(dir string) {
	candidates := []string{".env"}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// fillDefaults fills in empty values that have no meaningful zero.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = defaults.Model.Name
	}
	if cfg.Model.Endpoint == "" {
		cfg.Model.Endpoint = defaults.Model.Endpoint
	}
	if cfg.Model.ContextLength == 0 {
		cfg.Model.ContextLength = defaults.Model.ContextLength
	}
	if cfg.Model.TimeoutSecs == 0 {
		cfg.Model.TimeoutSecs = defaults.Model.TimeoutSecs
	}
	if cfg.Stream.FrameIntervalMs == 0 {
		cfg.Stream.FrameIntervalMs = defaults.Stream.FrameIntervalMs
	}
	if cfg.Stream.MaxBatch == 0 {
		cfg.Stream.MaxBatch = defaults.Stream.MaxBatch
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to ~/.muse/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: The file is written atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# muse configuration file\n")
	buf.WriteString("# Generated by muse - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Model
	if strings.TrimSpace(c.Model.Name) == "" {
		add("model.name", "must not be empty")
	}
	if u, err := url.Parse(c.Model.Endpoint); err != nil || u.Host == "" {
		add("model.endpoint", "invalid URL '%s'", c.Model.Endpoint)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("model.endpoint", "scheme must be http or https, got '%s'", u.Scheme)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature", "must be between 0 and 2, got %g", c.Model.Temperature)
	}
	if c.Model.ContextLength < 128 {
		add("model.context_length", "must be at least 128, got %d", c.Model.ContextLength)
	}
	if c.Model.TopK < 0 {
		add("model.top_k", "must not be negative")
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		add("model.top_p", "must be between 0 and 1, got %g", c.Model.TopP)
	}
	if c.Model.RepeatPenalty < 0 {
		add("model.repeat_penalty", "must not be negative")
	}
	if c.Model.NumThread < 0 {
		add("model.num_thread", "must not be negative")
	}
	if c.Model.TimeoutSecs < 1 {
		add("model.timeout_secs", "must be at least 1")
	}

	// Stream
	if c.Stream.FrameIntervalMs < 1 || c.Stream.FrameIntervalMs > 1000 {
		add("stream.frame_interval_ms", "must be between 1 and 1000, got %d", c.Stream.FrameIntervalMs)
	}
	if c.Stream.MaxBatch < 1 || c.Stream.MaxBatch > maxBatchLimit {
		add("stream.max_batch", "must be between 1 and %d, got %d", maxBatchLimit, c.Stream.MaxBatch)
	}
	if c.Stream.ThinkingDelayMs < 0 {
		add("stream.thinking_delay_ms", "must not be negative")
	}
	if c.Stream.MaxStallSecs < 0 {
		add("stream.max_stall_secs", "must not be negative")
	}
	if c.Stream.ResearchStageMs < 0 {
		add("stream.research_stage_ms", "must not be negative")
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - MUSE_API: overrides model.endpoint (VITE_OLLAMA_API is honoured too)
//   - MUSE_MODEL: overrides model.name
//   - MUSE_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if api := os.Getenv("VITE_OLLAMA_API"); api != "" {
		c.Model.Endpoint = api
	}
	if api := os.Getenv("MUSE_API"); api != "" {
		c.Model.Endpoint = api
	}
	if model := os.Getenv("MUSE_MODEL"); model != "" {
		c.Model.Name = model
	}
	if level := os.Getenv("MUSE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// Options returns the inference options sent with every chat request.
func (m ModelConfig) Options() *ollama.Options {
	return &ollama.Options{
		Temperature:   m.Temperature,
		TopK:          m.TopK,
		TopP:          m.TopP,
		RepeatPenalty: m.RepeatPenalty,
		NumCtx:        m.ContextLength,
		NumThread:     m.NumThread,
		F16KV:         m.F16KV,
	}
}

// Timeout returns the non-streaming request timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSecs) * time.Second
}

// FrameInterval returns the reveal frame interval.
func (s StreamConfig) FrameInterval() time.Duration {
	return time.Duration(s.FrameIntervalMs) * time.Millisecond
}

// ThinkingDelay returns the stall grace period.
func (s StreamConfig) ThinkingDelay() time.Duration {
	return time.Duration(s.ThinkingDelayMs) * time.Millisecond
}

// MaxStall returns the stall limit, zero when disabled.
func (s StreamConfig) MaxStall() time.Duration {
	return time.Duration(s.MaxStallSecs) * time.Second
}

// ResearchStage returns the pause between research status lines.
func (s StreamConfig) ResearchStage() time.Duration {
	return time.Duration(s.ResearchStageMs) * time.Millisecond
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "model.name").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "model.temperature").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"user.name",
		"user.avatar",
		"model.name",
		"model.endpoint",
		"model.temperature",
		"model.context_length",
		"model.system_prompt_override",
		"model.top_k",
		"model.top_p",
		"model.repeat_penalty",
		"model.num_thread",
		"model.f16_kv",
		"model.timeout_secs",
		"stream.frame_interval_ms",
		"stream.max_batch",
		"stream.thinking_delay_ms",
		"stream.max_stall_secs",
		"stream.research_stage_ms",
		"history.enabled",
		"history.path",
		"log.level",
		"log.file",
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("error encoding config: %v", err)
	}
	return buf.String()
}
