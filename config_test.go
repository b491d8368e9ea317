package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_loadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, defaultConfig().MaxContentLength, cfg.MaxContentLength)
	assert.Equal(t, 10, cfg.SearchResultLimit)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, transportStdio, cfg.Transport)
	assert.Equal(t, 128, cfg.Semantic.QueryCacheSize)
}

func Test_loadConfig_File(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/docs
search_result_limit: 25
transport: sse
server_addr: 0.0.0.0:9000
semantic:
  enabled: true
  backend: chroma
  open_ai:
    model: text-embedding-3-large
    api_key: sk-test
`)

	cfg, err := loadConfig(path, "")
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs", cfg.DataDir)
	assert.Equal(t, 25, cfg.SearchResultLimit)
	assert.Equal(t, 50000, cfg.MaxContentLength)
	assert.Equal(t, transportSSE, cfg.Transport)
	assert.Equal(t, "0.0.0.0:9000", cfg.ServerAddr)
	assert.True(t, cfg.Semantic.Enabled)
	assert.Equal(t, 1000, cfg.Semantic.ChunkSize)
	require.NotNil(t, cfg.Semantic.OpenAI)
	assert.Equal(t, "sk-test", cfg.Semantic.OpenAI.ApiKey)
	assert.Nil(t, cfg.Semantic.Gemini)
}

func Test_loadConfig_EmptyFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
}

func Test_loadConfig_Env(t *testing.T) {
	t.Setenv("PYRAMID_DATA_DIR", "/from/env")
	t.Setenv("PYRAMID_MAX_CONTENT_LENGTH", "1234")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"PYRAMID_DATA_DIR=/from/dotenv\nPYRAMID_SEARCH_RESULT_LIMIT=3\nPYRAMID_ENABLE_SEMANTIC_SEARCH=true\n"), 0o644))

	cfg, err := loadConfig(writeConfig(t, "data_dir: /from/file\n"), envPath)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 1234, cfg.MaxContentLength)
	assert.Equal(t, 3, cfg.SearchResultLimit)
	assert.True(t, cfg.Semantic.Enabled)
	assert.Equal(t, backendLocal, cfg.Semantic.Backend)
}

func Test_loadConfig_MissingEnvFile(t *testing.T) {
	_, err := loadConfig("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
}

func Test_loadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "workers: [1, 2"), "")
	assert.Error(t, err)

	t.Setenv("PYRAMID_SEARCH_RESULT_LIMIT", "many")
	_, err = loadConfig("", "")
	assert.ErrorContains(t, err, "PYRAMID_SEARCH_RESULT_LIMIT")
}

func Test_applyEnv_ApiKeys(t *testing.T) {
	cfg := defaultConfig()
	cfg.Semantic.Gemini = &EmbeddingConfig{Model: "custom", ApiKey: "from-file"}

	env := map[string]string{
		"OPENAI_API_KEY": "sk-env",
		"GEMINI_API_KEY": "gm-env",
	}
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	require.NotNil(t, cfg.Semantic.OpenAI)
	assert.Equal(t, "sk-env", cfg.Semantic.OpenAI.ApiKey)
	assert.Equal(t, "text-embedding-3-small", cfg.Semantic.OpenAI.Model)
	assert.Equal(t, "from-file", cfg.Semantic.Gemini.ApiKey)
	assert.Equal(t, "custom", cfg.Semantic.Gemini.Model)
}

func Test_validate(t *testing.T) {
	chroma := func(c *Config) {
		c.Semantic.Enabled = true
		c.Semantic.Backend = backendChroma
		c.Semantic.OpenAI = &EmbeddingConfig{Model: "m", ApiKey: "k"}
	}

	tests := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{name: "defaults", modify: func(c *Config) {}, valid: true},
		{name: "zero limit", modify: func(c *Config) { c.SearchResultLimit = 0 }},
		{name: "negative content length", modify: func(c *Config) { c.MaxContentLength = -1 }},
		{name: "no workers", modify: func(c *Config) { c.Workers = 0 }},
		{name: "unknown transport", modify: func(c *Config) { c.Transport = "grpc" }},
		{name: "sse without address", modify: func(c *Config) { c.Transport = transportSSE; c.ServerAddr = "" }},
		{name: "local semantic", modify: func(c *Config) { c.Semantic.Enabled = true }, valid: true},
		{name: "unknown backend", modify: func(c *Config) { c.Semantic.Enabled = true; c.Semantic.Backend = "faiss" }},
		{name: "chroma", modify: chroma, valid: true},
		{name: "chroma without provider", modify: func(c *Config) {
			chroma(c)
			c.Semantic.OpenAI = nil
		}},
		{name: "chroma overlap too large", modify: func(c *Config) {
			chroma(c)
			c.Semantic.ChunkOverlap = c.Semantic.ChunkSize
		}},
		{name: "disabled chroma is not checked", modify: func(c *Config) {
			chroma(c)
			c.Semantic.Enabled = false
			c.Semantic.OpenAI = nil
		}, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
