package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/gamma-omg/pyramid-mcp/docstore"
	"github.com/gamma-omg/pyramid-mcp/library"
	"github.com/gamma-omg/pyramid-mcp/ranker"
	"github.com/gamma-omg/pyramid-mcp/readers"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
	reset   bool
)

var rootCmd = &cobra.Command{
	Use:   "pyramid-mcp",
	Short: "MCP server for reading and searching a directory of documents",
	Long: `Serves the documents of a directory over the Model Context Protocol.

Without a subcommand the MCP server is started, as with "pyramid-mcp serve".
The other subcommands run a single operation locally and print JSON.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server on the configured transport.

With transport "stdio" (default) the server talks JSON-RPC over stdin and
stdout, logs never go to stdout. With transport "sse" it listens on
server_addr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "file with environment variable defaults")

	rootCmd.Flags().BoolVar(&reset, "reset", false, "rebuild the semantic index from scratch")
	serveCmd.Flags().BoolVar(&reset, "reset", false, "rebuild the semantic index from scratch")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cfgPath, envPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	lib, err := newLibrary(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Semantic.Enabled {
		closeStore, err := enableSemantic(ctx, cfg, lib, logger, true)
		if err != nil {
			return err
		}
		defer closeStore()
	}

	srv := NewDocServer(lib, logger.With("component", "server"))
	logger.Info("starting server", "transport", cfg.Transport, "data_dir", cfg.DataDir, "semantic", lib.SemanticEnabled())

	if cfg.Transport == transportSSE {
		sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.ServerAddr)))

		go func() {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sse.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down server", "error", err)
			}
		}()

		err = sse.Start(cfg.ServerAddr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	return server.ServeStdio(srv)
}

// newLogger writes JSON logs to the configured file, or stderr when none is
// set, since stdout carries the stdio transport.
func newLogger(cfg *Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		out = logFile
		closeLog = func() { logFile.Close() }
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func newLibrary(cfg *Config, logger *slog.Logger) (*library.Library, error) {
	lib := library.New(library.Config{
		Root:             cfg.DataDir,
		MaxContentLength: cfg.MaxContentLength,
		SearchLimit:      cfg.SearchResultLimit,
		MaxFileSize:      cfg.MaxFileSize,
		Workers:          cfg.Workers,
	}, logger.With("component", "library"))

	err := lib.RegisterReader(
		&readers.PdfFileReader{},
		&readers.TxtFileReader{},
		&readers.UniversalFileReader{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register readers: %w", err)
	}

	return lib, nil
}

// enableSemantic wires the configured semantic backend into lib. With index
// set, the chroma backend is synced with the data directory and kept up to
// date until ctx is done. The returned function releases the backend.
func enableSemantic(ctx context.Context, cfg *Config, lib *library.Library, logger *slog.Logger, index bool) (func(), error) {
	if cfg.Semantic.Backend == backendLocal {
		lib.EnableSemantic(library.NewScoringRetriever(lib, ranker.NewTermScorer("en", cfg.Semantic.QueryCacheSize), cfg.Semantic.Threshold))
		return func() {}, nil
	}

	store, err := initDocStore(ctx, cfg, reset && index)
	if err != nil {
		return nil, err
	}

	if index {
		reg := &DocRegistry{
			log:              logger.With("component", "registry"),
			lib:              lib,
			store:            store,
			mergeEventsDelay: time.Duration(cfg.Semantic.MergeEventsMs) * time.Millisecond,
			chunkifier: &DefaultChunkifier{
				chunkSize:    cfg.Semantic.ChunkSize,
				chunkOverlap: cfg.Semantic.ChunkOverlap,
			},
		}

		go func() {
			if err := reg.Sync(ctx); err != nil {
				logger.Error("failed to sync document index", "error", err)
				return
			}

			if err := reg.Watch(ctx); err != nil {
				logger.Error("failed to watch data directory", "error", err)
			}
		}()
	}

	lib.EnableSemantic(&storeRetriever{store: store})

	return func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close doc store", "error", err)
		}
	}, nil
}

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, error) {
	if p := cfg.Semantic.OpenAI; p != nil && p.ApiKey != "" {
		ef, err := openai.NewOpenAIEmbeddingFunction(
			p.ApiKey,
			openai.WithModel(openai.EmbeddingModel(p.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, nil
	}

	if p := cfg.Semantic.Gemini; p != nil && p.ApiKey != "" {
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(p.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(p.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, nil
	}

	return nil, errors.New("invalid embeddings provider configuration")
}

func initDocStore(ctx context.Context, cfg *Config, reset bool) (*docstore.ChromaStore, error) {
	ef, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
		BaseURL:       cfg.Semantic.ChromaAddr,
		Collection:    cfg.Semantic.Collection,
		EmbeddingFunc: ef,
		Results:       cfg.Semantic.Results,
		RequestSize:   cfg.Semantic.RequestSize,
		Reset:         reset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
	}

	return store, nil
}
