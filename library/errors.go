package library

import "errors"

var (
	// ErrDirectoryNotFound indicates the configured data directory is missing.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrFileNotFound indicates a path that does not resolve to a file
	// inside the data directory.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPageRange indicates a malformed range or one exceeding the
	// document's page count.
	ErrInvalidPageRange = errors.New("invalid page range")

	// ErrCorruptDocument indicates the document could not be parsed.
	ErrCorruptDocument = errors.New("corrupt document")

	ErrUnsupportedType = errors.New("unsupported file type")

	ErrFileTooLarge = errors.New("file too large")

	ErrEmptyQuery = errors.New("empty search query")

	// ErrSemanticDisabled indicates a semantic search request while no
	// retriever is configured.
	ErrSemanticDisabled = errors.New("semantic search disabled")
)
