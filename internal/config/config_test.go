// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the override variables for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MUSE_API", "MUSE_MODEL", "MUSE_LOG_LEVEL", "VITE_OLLAMA_API"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// DEFAULT TESTS
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "qwen2.5-coder:3b", cfg.Model.Name)
	assert.Equal(t, DefaultEndpoint, cfg.Model.Endpoint)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, 2048, cfg.Model.ContextLength)
	assert.Equal(t, 16*time.Millisecond, cfg.Stream.FrameInterval())
	assert.Equal(t, 64, cfg.Stream.MaxBatch)
	assert.Equal(t, 400*time.Millisecond, cfg.Stream.ThinkingDelay())
	assert.Zero(t, cfg.Stream.MaxStall())
	assert.Equal(t, 1500*time.Millisecond, cfg.Stream.ResearchStage())
	assert.True(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestModelConfig_Options(t *testing.T) {
	opts := Default().Model.Options()
	assert.Equal(t, 0.2, opts.Temperature)
	assert.Equal(t, 2048, opts.NumCtx)
	assert.Equal(t, 6, opts.NumThread)
	assert.Equal(t, 20, opts.TopK)
	assert.Equal(t, 0.9, opts.TopP)
	assert.Equal(t, 1.1, opts.RepeatPenalty)
	assert.True(t, opts.F16KV)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty model", func(c *Config) { c.Model.Name = " " }, "model.name"},
		{"bad endpoint", func(c *Config) { c.Model.Endpoint = "localhost" }, "model.endpoint"},
		{"bad scheme", func(c *Config) { c.Model.Endpoint = "ftp://host:1" }, "model.endpoint"},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"context", func(c *Config) { c.Model.ContextLength = 10 }, "model.context_length"},
		{"top_p", func(c *Config) { c.Model.TopP = 1.5 }, "model.top_p"},
		{"frame", func(c *Config) { c.Stream.FrameIntervalMs = 0 }, "stream.frame_interval_ms"},
		{"batch", func(c *Config) { c.Stream.MaxBatch = 0 }, "stream.max_batch"},
		{"batch over cap", func(c *Config) { c.Stream.MaxBatch = 500 }, "stream.max_batch"},
		{"stall", func(c *Config) { c.Stream.MaxStallSecs = -1 }, "stream.max_stall_secs"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_ValidateBatchAtCap(t *testing.T) {
	cfg := Default()
	cfg.Stream.MaxBatch = 64
	assert.NoError(t, cfg.Validate())
}

func TestValidateErrors_Error(t *testing.T) {
	errs := ValidateErrors{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}
	assert.Equal(t, "a: bad; b: worse", errs.Error())
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
}

// =============================================================================
// LOAD / SAVE TESTS
// =============================================================================

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[model]
name = "llama3.2"
temperature = 0.0

[stream]
max_stall_secs = 30
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.Model.Name)
	assert.Equal(t, 0.0, cfg.Model.Temperature)
	assert.Equal(t, DefaultEndpoint, cfg.Model.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Stream.MaxStall())
	assert.Equal(t, 64, cfg.Stream.MaxBatch)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[model]\nnmae = \"typo\"\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.nmae")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[model]\ntemperature = 9.0\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.temperature")
}

func TestLoadOrDefault_Missing(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.User.Name = "Ada"
	cfg.Model.SystemPromptOverride = "Be terse."
	cfg.Model.F16KV = false
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# muse configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// ENVIRONMENT TESTS
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VITE_OLLAMA_API", "http://legacy:1")
	t.Setenv("MUSE_MODEL", "mistral")
	t.Setenv("MUSE_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://legacy:1", cfg.Model.Endpoint)
	assert.Equal(t, "mistral", cfg.Model.Name)
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv("MUSE_API", "http://gpu-box:11434")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://gpu-box:11434", cfg.Model.Endpoint)
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "MUSE_MODEL=from-dotenv\n")

	LoadEnvFiles(dir)
	t.Cleanup(func() { os.Unsetenv("MUSE_MODEL") })

	cfg, err := LoadOrDefault(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model.Name)
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("model.name")
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:3b", v)

	require.NoError(t, cfg.Set("model.temperature", "0.7"))
	assert.Equal(t, 0.7, cfg.Model.Temperature)

	require.NoError(t, cfg.Set("model.f16_kv", "false"))
	assert.False(t, cfg.Model.F16KV)

	require.NoError(t, cfg.Set("stream.max_batch", 32))
	assert.Equal(t, 32, cfg.Stream.MaxBatch)

	require.NoError(t, cfg.Set("model.system_prompt_override", "Hi"))
	assert.Equal(t, "Hi", cfg.Model.SystemPromptOverride)

	_, err = cfg.Get("model.nope")
	assert.Error(t, err)
	_, err = cfg.Get("model")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("stream.max_batch", "many"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Model.Name = "changed"
	assert.Equal(t, "qwen2.5-coder:3b", cfg.Model.Name)
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.History.Path = "/tmp/muse.db"
	p, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/muse.db", p)

	cfg.History.Path = ""
	p, err = cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "history.db", filepath.Base(p))
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	ready := make(chan error, 1)
	go func() {
		ready <- Watch(ctx, path, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.Model.Name = "reloaded"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case c := <-got:
		assert.Equal(t, "reloaded", c.Model.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-ready)
}
