package readers

import (
	"fmt"
	"os"
)

type TxtFileReader struct{}

func (r *TxtFileReader) Exts() []string {
	return []string{".txt", ".md"}
}

func (r *TxtFileReader) Open(path string) (Document, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	return &textDocument{text: string(buf)}, nil
}
