package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/gamma-omg/pyramid-mcp/library"
	"github.com/spf13/cobra"
)

var (
	readPages   string
	readSection string

	searchFilter        string
	searchLimit         int
	searchCaseSensitive bool
	searchSemantic      bool
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the files in the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lib, _, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		files, err := lib.ListFiles()
		if err != nil {
			return err
		}

		return printJSON(cmd, files)
	},
}

var readCmd = &cobra.Command{
	Use:   "read [file]",
	Short: "Print the text of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, _, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		r, err := library.ParsePageRange(readPages)
		if err != nil {
			return err
		}

		content, err := lib.ReadContent(cmd.Context(), args[0], r, readSection)
		if err != nil {
			return err
		}

		return printJSON(cmd, content)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the text of all documents",
	Long: `Search the text of all documents for a query.

With --semantic, pages are ranked by meaning through the configured semantic
backend, which must be enabled in the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, cfg, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		if searchSemantic && cfg.Semantic.Enabled {
			closeStore, err := enableSemantic(cmd.Context(), cfg, lib, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
			if err != nil {
				return err
			}
			defer closeStore()
		}

		res, err := lib.Search(cmd.Context(), args[0], library.SearchOptions{
			Filter:        searchFilter,
			Limit:         searchLimit,
			CaseSensitive: searchCaseSensitive,
			Semantic:      searchSemantic,
		})
		if err != nil {
			return err
		}

		return printJSON(cmd, res)
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata [file]",
	Short: "Print the metadata of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, _, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		info, err := lib.Metadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd, info)
	},
}

var outlineCmd = &cobra.Command{
	Use:   "outline [file]",
	Short: "Print the bookmark outline of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, _, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		outline, err := lib.Outline(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd, outline)
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List PDF documents with their metadata, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lib, _, err := localLibrary(cmd)
		if err != nil {
			return err
		}

		docs, err := lib.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}

		return printJSON(cmd, docs)
	},
}

func init() {
	readCmd.Flags().StringVarP(&readPages, "pages", "p", "", `page or range, e.g. "5" or "1-10"`)
	readCmd.Flags().StringVarP(&readSection, "section", "s", "", "only print bookmarked sections whose title contains this text")

	searchCmd.Flags().StringVarP(&searchFilter, "filter", "f", "", "only search documents whose name contains this text")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = configured limit)")
	searchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "match letter case exactly")
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "rank pages by meaning")

	rootCmd.AddCommand(filesCmd, readCmd, searchCmd, metadataCmd, outlineCmd, documentsCmd)
}

// localLibrary builds the library for a one-off command. Logs go to stderr.
func localLibrary(cmd *cobra.Command) (*library.Library, *Config, error) {
	cfg, err := loadConfig(cfgPath, envPath)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	lib, err := newLibrary(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return lib, cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
