package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gamma-omg/pyramid-mcp/docstore"
	"github.com/gamma-omg/pyramid-mcp/library"
)

type DocStore interface {
	Ingest(ctx context.Context, doc docstore.Doc) error
	Forget(ctx context.Context, doc docstore.IngestedDoc) error
	GetIngested(ctx context.Context) ([]docstore.IngestedDoc, error)
}

type Chunkifier interface {
	Chunkify(text string) []string
}

type pageLoader interface {
	Root() string
	ListFiles() ([]library.FileInfo, error)
	Supported(path string) bool
	Load(ctx context.Context, path string, r library.PageRange) (*library.Document, error)
}

// DocRegistry keeps the vector store in line with the documents on disk.
type DocRegistry struct {
	log              *slog.Logger
	lib              pageLoader
	store            DocStore
	chunkifier       Chunkifier
	mergeEventsDelay time.Duration

	// ingested maps file paths to the checksum stored for them. It is only
	// touched by Sync and by the Watch loop, never concurrently.
	ingested map[string]uint32
	// empty holds the checksum of documents that produced no chunks, so
	// they are not read again until they change.
	empty map[string]uint32
}

type DiskDoc struct {
	File string
	Crc  uint32
}

type diskDocs map[string]DiskDoc
type dbDocs map[string]docstore.IngestedDoc

// Sync ingests documents that are new or changed since they were stored and
// forgets the ones that were removed.
func (dr *DocRegistry) Sync(ctx context.Context) error {
	disk, err := dr.collectDocs()
	if err != nil {
		return err
	}

	diskMap := make(diskDocs)
	for _, d := range disk {
		diskMap[d.File] = d
	}

	db, err := dr.store.GetIngested(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ingested documents: %w", err)
	}

	dbMap := make(dbDocs)
	for _, d := range db {
		dbMap[d.File] = d
	}

	dr.ingested = make(map[string]uint32, len(dbMap))
	for _, d := range dbMap {
		dr.ingested[d.File] = d.Crc
	}

	for file, crc := range dr.empty {
		if d, ok := diskMap[file]; !ok || d.Crc != crc {
			delete(dr.empty, file)
		}
	}

	// stale chunks go first, forgetting is by file
	err = dr.forgetRemovedDocuments(ctx, diskMap, dbMap)
	if err != nil {
		return err
	}

	err = dr.ingestNewDocuments(ctx, diskMap, dbMap)
	if err != nil {
		return err
	}

	dr.log.Info("document index synced", "documents", len(dr.ingested))
	return nil
}

func (dr *DocRegistry) collectDocs() ([]DiskDoc, error) {
	files, err := dr.lib.ListFiles()
	if err != nil {
		return nil, err
	}

	docs := make([]DiskDoc, 0, len(files))
	for _, f := range files {
		if !dr.lib.Supported(f.Path) {
			dr.log.Debug(fmt.Sprintf("unsupported file: %s", f.Path))
			continue
		}

		crc, err := checksum(f.Path)
		if err != nil {
			dr.log.Warn("failed to checksum document", "file", f.Path, "error", err)
			continue
		}

		docs = append(docs, DiskDoc{File: f.Path, Crc: crc})
	}

	return docs, nil
}

func (dr *DocRegistry) ingestNewDocuments(ctx context.Context, disk diskDocs, db dbDocs) error {
	for _, diskDoc := range disk {
		dbDoc, ok := db[diskDoc.File]
		if ok && dbDoc.Crc == diskDoc.Crc {
			continue
		}
		if crc, ok := dr.empty[diskDoc.File]; ok && crc == diskDoc.Crc {
			continue
		}

		if err := dr.ingest(ctx, diskDoc); err != nil {
			return err
		}
	}

	return nil
}

func (dr *DocRegistry) forgetRemovedDocuments(ctx context.Context, disk diskDocs, db dbDocs) error {
	for _, dbDoc := range db {
		diskDoc, ok := disk[dbDoc.File]
		if ok && diskDoc.Crc == dbDoc.Crc {
			continue
		}

		if err := dr.forget(ctx, dbDoc); err != nil {
			return err
		}
	}

	return nil
}

// ingest stores the chunks of every page of doc. Documents that cannot be
// read are logged and left out of the index.
func (dr *DocRegistry) ingest(ctx context.Context, doc DiskDoc) error {
	loaded, err := dr.lib.Load(ctx, doc.File, library.PageRange{})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dr.log.Warn("failed to read document", "file", doc.File, "error", err)
		return nil
	}

	var chunks []docstore.Chunk
	for _, p := range loaded.Pages {
		for _, text := range dr.chunkifier.Chunkify(p.Text) {
			chunks = append(chunks, docstore.Chunk{Page: p.Number, Text: text})
		}
	}

	if len(chunks) == 0 {
		if dr.empty == nil {
			dr.empty = make(map[string]uint32)
		}
		dr.empty[doc.File] = doc.Crc
		dr.log.Debug("document has no text to index", "file", doc.File, "pages", loaded.PageCount)
		return nil
	}

	err = dr.store.Ingest(ctx, docstore.Doc{
		File:   doc.File,
		Crc:    doc.Crc,
		Chunks: chunks,
	})
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.File, err)
	}

	dr.ingested[doc.File] = doc.Crc
	dr.log.Info("document ingested", "file", doc.File, "pages", loaded.PageCount, "chunks", len(chunks))

	return nil
}

func (dr *DocRegistry) forget(ctx context.Context, doc docstore.IngestedDoc) error {
	err := dr.store.Forget(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to remove document %s from store: %w", doc.File, err)
	}

	delete(dr.ingested, doc.File)
	dr.log.Info("document forgotten", "file", doc.File)

	return nil
}

// Watch follows changes in the data directory until ctx is done. Events for
// the same file are merged over mergeEventsDelay before the file is
// re-indexed.
func (dr *DocRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	root, err := filepath.Abs(dr.lib.Root())
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if dr.ingested == nil {
		dr.ingested = make(map[string]uint32)
	}

	go dr.watch(ctx, watcher)
	return nil
}

func (dr *DocRegistry) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	timers := make(map[string]*time.Timer)
	pending := make(chan string)

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			dr.log.Error("file watcher failed", "error", err)

		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Remove) && !e.Has(fsnotify.Rename) {
				continue
			}
			if !dr.lib.Supported(e.Name) {
				continue
			}

			if t, ok := timers[e.Name]; ok {
				t.Reset(dr.mergeEventsDelay)
				continue
			}

			name := e.Name
			timers[name] = time.AfterFunc(dr.mergeEventsDelay, func() {
				select {
				case pending <- name:
				case <-ctx.Done():
				}
			})

		case file := <-pending:
			delete(timers, file)
			if err := dr.refresh(ctx, file); err != nil {
				dr.log.Error("failed to update document index", "file", file, "error", err)
			}
		}
	}
}

// refresh re-indexes file after it changed on disk.
func (dr *DocRegistry) refresh(ctx context.Context, file string) error {
	crc, err := checksum(file)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	stored, known := dr.ingested[file]
	if exists && known && stored == crc {
		return nil
	}

	if emptyCrc, ok := dr.empty[file]; ok {
		if exists && emptyCrc == crc {
			return nil
		}
		delete(dr.empty, file)
	}

	if known {
		if err := dr.forget(ctx, docstore.IngestedDoc{File: file, Crc: stored}); err != nil {
			return err
		}
	}

	if !exists {
		return nil
	}

	return dr.ingest(ctx, DiskDoc{File: file, Crc: crc})
}

func checksum(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}
