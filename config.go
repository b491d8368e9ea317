package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/gamma-omg/pyramid-mcp/ranker"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	transportStdio = "stdio"
	transportSSE   = "sse"

	backendLocal  = "local"
	backendChroma = "chroma"
)

type Config struct {
	LogFile           string         `yaml:"log"`
	LogLevel          string         `yaml:"log_level"`
	DataDir           string         `yaml:"data_dir"`
	MaxContentLength  int            `yaml:"max_content_length"`
	SearchResultLimit int            `yaml:"search_result_limit"`
	MaxFileSize       int64          `yaml:"max_file_size"`
	Workers           int            `yaml:"workers"`
	Transport         string         `yaml:"transport"`
	ServerAddr        string         `yaml:"server_addr"`
	Semantic          SemanticConfig `yaml:"semantic"`
}

type SemanticConfig struct {
	Enabled        bool             `yaml:"enabled"`
	Backend        string           `yaml:"backend"`
	Threshold      float32          `yaml:"threshold"`
	QueryCacheSize int              `yaml:"query_cache_size"`
	ChromaAddr     string           `yaml:"chroma_addr"`
	Collection     string           `yaml:"collection"`
	MergeEventsMs  int              `yaml:"write_debounce_ms"`
	ChunkSize      int              `yaml:"chunk_size"`
	ChunkOverlap   int              `yaml:"chunk_overlap"`
	RequestSize    int              `yaml:"request_size"`
	Results        int              `yaml:"results"`
	OpenAI         *EmbeddingConfig `yaml:"open_ai"`
	Gemini         *EmbeddingConfig `yaml:"gemini"`
}

type EmbeddingConfig struct {
	Model  string `yaml:"model"`
	ApiKey string `yaml:"api_key"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		DataDir:           "data",
		MaxContentLength:  50000,
		SearchResultLimit: 10,
		MaxFileSize:       100 * 1024 * 1024,
		Workers:           4,
		Transport:         transportStdio,
		ServerAddr:        "localhost:8080",
		Semantic: SemanticConfig{
			Backend:        backendLocal,
			Threshold:      0.1,
			QueryCacheSize: ranker.DefaultQueryCacheSize,
			ChromaAddr:     "http://localhost:8000",
			MergeEventsMs:  500,
			ChunkSize:      1000,
			ChunkOverlap:   100,
			RequestSize:    16384,
			Results:        30,
		},
	}
}

// loadConfig reads the YAML file at cfgPath on top of the defaults, then
// applies environment overrides. Variables in the .env file at envPath are
// used when the process environment does not set them. Either path may be
// empty.
func loadConfig(cfgPath, envPath string) (*Config, error) {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	dotenv := map[string]string{}
	if envPath != "" {
		dotenv, err = godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to read env file: %w", err)
		}
	}

	err = cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := dotenv[key]
		return v, ok
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func readConfig(cfgPath string) (*Config, error) {
	cfg := defaultConfig()
	if cfgPath == "" {
		return cfg, nil
	}

	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PYRAMID_DATA_DIR"); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup("PYRAMID_LOG"); ok {
		c.LogFile = v
	}

	if v, ok := lookup("PYRAMID_MAX_CONTENT_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PYRAMID_MAX_CONTENT_LENGTH %q: %w", v, err)
		}
		c.MaxContentLength = n
	}

	if v, ok := lookup("PYRAMID_SEARCH_RESULT_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PYRAMID_SEARCH_RESULT_LIMIT %q: %w", v, err)
		}
		c.SearchResultLimit = n
	}

	if v, ok := lookup("PYRAMID_ENABLE_SEMANTIC_SEARCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PYRAMID_ENABLE_SEMANTIC_SEARCH %q: %w", v, err)
		}
		c.Semantic.Enabled = b
	}

	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		if c.Semantic.OpenAI == nil {
			c.Semantic.OpenAI = &EmbeddingConfig{Model: "text-embedding-3-small"}
		}
		if c.Semantic.OpenAI.ApiKey == "" {
			c.Semantic.OpenAI.ApiKey = v
		}
	}

	if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" {
		if c.Semantic.Gemini == nil {
			c.Semantic.Gemini = &EmbeddingConfig{Model: "text-embedding-004"}
		}
		if c.Semantic.Gemini.ApiKey == "" {
			c.Semantic.Gemini.ApiKey = v
		}
	}

	return nil
}

func (c *Config) validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data_dir is required")
	case c.MaxContentLength <= 0:
		return errors.New("max_content_length must be positive")
	case c.SearchResultLimit <= 0:
		return errors.New("search_result_limit must be positive")
	case c.MaxFileSize <= 0:
		return errors.New("max_file_size must be positive")
	case c.Workers <= 0:
		return errors.New("workers must be positive")
	}

	switch c.Transport {
	case transportStdio:
	case transportSSE:
		if c.ServerAddr == "" {
			return errors.New("server_addr is required for sse transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if !c.Semantic.Enabled {
		return nil
	}

	s := c.Semantic
	switch s.Backend {
	case backendLocal:
		return nil
	case backendChroma:
	default:
		return fmt.Errorf("unknown semantic backend %q", s.Backend)
	}

	switch {
	case s.ChromaAddr == "":
		return errors.New("semantic.chroma_addr is required")
	case s.ChunkSize <= 0:
		return errors.New("semantic.chunk_size must be positive")
	case s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize:
		return errors.New("semantic.chunk_overlap must be in [0, chunk_size)")
	case s.RequestSize <= 0:
		return errors.New("semantic.request_size must be positive")
	case s.Results <= 0:
		return errors.New("semantic.results must be positive")
	case s.MergeEventsMs < 0:
		return errors.New("semantic.write_debounce_ms must not be negative")
	}

	if (s.OpenAI == nil || s.OpenAI.ApiKey == "") && (s.Gemini == nil || s.Gemini.ApiKey == "") {
		return errors.New("chroma backend needs an open_ai or gemini embedding provider with an api key")
	}

	return nil
}
