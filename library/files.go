package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type FileInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	Extension string    `json:"extension"`
}

// ListFiles returns every regular file directly under the data directory,
// sorted by name.
func (l *Library) ListFiles() ([]FileInfo, error) {
	root, entries, err := l.readDir()
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed between ReadDir and Info
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}

		files = append(files, FileInfo{
			Name:      e.Name(),
			Path:      filepath.Join(root, e.Name()),
			Size:      info.Size(),
			Modified:  info.ModTime(),
			Extension: strings.ToLower(filepath.Ext(e.Name())),
		})
	}

	return files, nil
}

// documents returns the files a reader is registered for whose name contains
// filter, case-insensitively.
func (l *Library) documents(filter string) ([]FileInfo, error) {
	files, err := l.ListFiles()
	if err != nil {
		return nil, err
	}

	filter = strings.ToLower(strings.TrimSpace(filter))

	docs := make([]FileInfo, 0, len(files))
	for _, f := range files {
		if !l.Supported(f.Name) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(f.Name), filter) {
			continue
		}

		docs = append(docs, f)
	}

	return docs, nil
}

// readDir returns the absolute data directory and its entries.
func (l *Library) readDir() (string, []os.DirEntry, error) {
	info, err := os.Stat(l.root)
	if err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, l.root)
	}

	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list %s: %w", l.root, err)
	}

	return root, entries, nil
}
