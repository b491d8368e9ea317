package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamma-omg/pyramid-mcp/library"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "pyramid-mcp"
	serverVersion = "0.1.0"
)

type documentService interface {
	Root() string
	ListFiles() ([]library.FileInfo, error)
	ReadContent(ctx context.Context, path string, r library.PageRange, section string) (*library.Content, error)
	Search(ctx context.Context, query string, opts library.SearchOptions) ([]library.SearchResult, error)
	Metadata(ctx context.Context, path string) (*library.DocumentInfo, error)
	Outline(ctx context.Context, path string) (*library.Outline, error)
	ListDocuments(ctx context.Context) ([]library.DocumentInfo, error)
	SemanticEnabled() bool
}

type DocServer struct {
	log  *slog.Logger
	docs documentService
}

func NewDocServer(docs documentService, log *slog.Logger) *server.MCPServer {
	ds := &DocServer{log: log, docs: docs}

	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the files in the document directory with their size and modification time"),
	), ds.logged("list_files", ds.listFiles))

	srv.AddTool(mcp.NewTool("read_pdf_content",
		mcp.WithDescription("Extract the text of a document, optionally limited to a page range"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path of the document, relative to the document directory or absolute inside it"),
		),
		mcp.WithString("page_range",
			mcp.Description(`1-based page or inclusive range, e.g. "5" or "1-10". All pages when omitted`),
		),
		mcp.WithString("section_filter",
			mcp.Description(`Only return the bookmarked sections whose title contains this text, e.g. "Compliance Rules"`),
		),
	), ds.logged("read_pdf_content", ds.readContent))

	searchOpts := []mcp.ToolOption{
		mcp.WithDescription("Search the text of all documents and return matches with page and excerpt"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithString("doc_filter",
			mcp.Description("Only search documents whose file name contains this text"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return"),
		),
		mcp.WithBoolean("case_sensitive",
			mcp.Description("Match letter case exactly"),
		),
	}
	if docs.SemanticEnabled() {
		searchOpts = append(searchOpts, mcp.WithBoolean("semantic",
			mcp.Description("Rank pages by meaning instead of matching the exact text"),
		))
	}
	srv.AddTool(mcp.NewTool("search_documents", searchOpts...), ds.logged("search_documents", ds.search))

	srv.AddTool(mcp.NewTool("get_document_metadata",
		mcp.WithDescription("Get document properties, page count and the type, version and date encoded in the file name"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path of the document, relative to the document directory or absolute inside it"),
		),
	), ds.logged("get_document_metadata", ds.metadata))

	srv.AddTool(mcp.NewTool("get_document_outline",
		mcp.WithDescription("Get the table of contents of a document from its bookmarks"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path of the document, relative to the document directory or absolute inside it"),
		),
	), ds.logged("get_document_outline", ds.outline))

	srv.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List PDF documents with their metadata, newest first"),
	), ds.logged("list_documents", ds.listDocuments))

	return srv
}

func (ds *DocServer) logged(tool string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log := ds.log.With("tool", tool, "call_id", uuid.NewString())
		start := time.Now()

		res, err := h(ctx, request)

		failed := err != nil || (res != nil && res.IsError)
		log.Info("tool call", "duration", time.Since(start), "failed", failed)

		return res, err
	}
}

func (ds *DocServer) listFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := ds.docs.ListFiles()
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(struct {
		Directory string             `json:"directory"`
		Files     []library.FileInfo `json:"files"`
		Count     int                `json:"count"`
	}{
		Directory: ds.docs.Root(),
		Files:     files,
		Count:     len(files),
	})
}

func (ds *DocServer) readContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := library.ParsePageRange(request.GetString("page_range", ""))
	if err != nil {
		return ds.toolError(err), nil
	}

	content, err := ds.docs.ReadContent(ctx, path, r, request.GetString("section_filter", ""))
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(content)
}

func (ds *DocServer) search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := library.SearchOptions{
		Filter:        request.GetString("doc_filter", ""),
		Limit:         request.GetInt("max_results", 0),
		CaseSensitive: request.GetBool("case_sensitive", false),
		Semantic:      request.GetBool("semantic", false),
	}

	res, err := ds.docs.Search(ctx, query, opts)
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(struct {
		Query   string                 `json:"query"`
		Filter  string                 `json:"doc_filter,omitempty"`
		Results []library.SearchResult `json:"results"`
		Count   int                    `json:"count"`
	}{
		Query:   query,
		Filter:  opts.Filter,
		Results: res,
		Count:   len(res),
	})
}

func (ds *DocServer) metadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := ds.docs.Metadata(ctx, path)
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(info)
}

func (ds *DocServer) outline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outline, err := ds.docs.Outline(ctx, path)
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(outline)
}

func (ds *DocServer) listDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := ds.docs.ListDocuments(ctx)
	if err != nil {
		return ds.toolError(err), nil
	}

	return jsonResult(struct {
		Directory string                 `json:"directory"`
		Documents []library.DocumentInfo `json:"documents"`
		Count     int                    `json:"count"`
	}{
		Directory: ds.docs.Root(),
		Documents: docs,
		Count:     len(docs),
	})
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{library.ErrDirectoryNotFound, "directory_not_found"},
	{library.ErrFileNotFound, "file_not_found"},
	{library.ErrInvalidPageRange, "invalid_page_range"},
	{library.ErrFileTooLarge, "file_too_large"},
	{library.ErrUnsupportedType, "unsupported_type"},
	{library.ErrCorruptDocument, "corrupt_document"},
	{library.ErrEmptyQuery, "empty_query"},
	{library.ErrSemanticDisabled, "semantic_disabled"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
}

// errorKind names the failure class of err for tool clients.
func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return "internal"
}

func (ds *DocServer) toolError(err error) *mcp.CallToolResult {
	kind := errorKind(err)
	if kind == "internal" {
		ds.log.Error("tool failed", "error", err)
	}

	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}
