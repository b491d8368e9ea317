package library

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

type DocumentInfo struct {
	File             string            `json:"file_path"`
	Name             string            `json:"file_name"`
	Size             int64             `json:"file_size"`
	DocumentType     string            `json:"document_type"`
	Version          string            `json:"version"`
	FileDate         string            `json:"date_from_filename,omitempty"`
	PageCount        int               `json:"page_count"`
	Title            string            `json:"title,omitempty"`
	Author           string            `json:"author,omitempty"`
	Subject          string            `json:"subject,omitempty"`
	Creator          string            `json:"creator,omitempty"`
	Producer         string            `json:"producer,omitempty"`
	CreationDate     *time.Time        `json:"creation_date,omitempty"`
	ModificationDate *time.Time        `json:"modification_date,omitempty"`
	HasBookmarks     bool              `json:"has_bookmarks"`
	Structure        DocumentStructure `json:"structure"`
	Error            string            `json:"error,omitempty"`
}

var (
	versionPattern = regexp.MustCompile(`V(\d+(?:\.\d+)*)`)
	datePattern    = regexp.MustCompile(`\d{8}`)
)

// Classify derives the document type, version and date from a file name
// such as "PYRAMID_Technical_Standard_V2.1_20250309.pdf".
func Classify(name string) (docType, version, date string) {
	switch {
	case strings.Contains(name, "Technical_Standard_Guidance"):
		docType = "Technical Standard Guidance"
	case strings.Contains(name, "Technical_Standard"):
		docType = "Technical Standard"
	case strings.Contains(name, "VDD"):
		docType = "VDD (Version Description Document)"
	default:
		docType = "Unknown"
	}

	version = "Unknown"
	if m := versionPattern.FindStringSubmatch(name); m != nil {
		version = m[1]
	}

	date = datePattern.FindString(name)

	return docType, version, date
}

// Metadata reports file, Info dictionary and file name details for path.
func (l *Library) Metadata(ctx context.Context, path string) (*DocumentInfo, error) {
	file, info, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(file)
	docType, version, date := Classify(name)

	res := &DocumentInfo{
		File:         file,
		Name:         name,
		Size:         info.Size(),
		DocumentType: docType,
		Version:      version,
		FileDate:     date,
		Structure:    structureOf(nil),
	}

	reader, ok := l.readers[strings.ToLower(filepath.Ext(file))].(MetadataReader)
	if !ok {
		doc, err := l.open(file, info)
		if err != nil {
			return nil, err
		}
		defer doc.Close()

		res.PageCount = doc.NumPages()
		return res, nil
	}

	if l.maxFileSize > 0 && info.Size() > l.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max: %d)", ErrFileTooLarge, name, info.Size(), l.maxFileSize)
	}

	meta, err := reader.ReadMetadata(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, name, err)
	}

	res.PageCount = meta.PageCount
	res.Title = meta.Title
	res.Author = meta.Author
	res.Subject = meta.Subject
	res.Creator = meta.Creator
	res.Producer = meta.Producer
	res.CreationDate = meta.CreationDate
	res.ModificationDate = meta.ModificationDate
	res.HasBookmarks = meta.HasBookmarks

	items, err := l.readOutline(file, info)
	if err != nil {
		l.log.Warn("failed to read document outline", "file", file, "error", err)
	} else {
		res.Structure = structureOf(items)
	}

	return res, nil
}

// ListDocuments returns metadata for every document with a metadata reader,
// newest file name date first. Documents that fail to parse are kept with
// their error.
func (l *Library) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	files, err := l.ListFiles()
	if err != nil {
		return nil, err
	}

	docs := make([]DocumentInfo, 0, len(files))
	for _, f := range files {
		if _, ok := l.readers[f.Extension].(MetadataReader); !ok {
			continue
		}

		info, err := l.Metadata(ctx, f.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			l.log.Warn("failed to read document metadata", "file", f.Path, "error", err)

			docType, version, date := Classify(f.Name)
			info = &DocumentInfo{
				File:         f.Path,
				Name:         f.Name,
				Size:         f.Size,
				DocumentType: docType,
				Version:      version,
				FileDate:     date,
				Structure:    structureOf(nil),
				Error:        err.Error(),
			}
		}

		docs = append(docs, *info)
	}

	slices.SortStableFunc(docs, func(a, b DocumentInfo) int {
		return cmp.Compare(b.FileDate, a.FileDate)
	})

	return docs, nil
}
