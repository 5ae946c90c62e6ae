package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/agentmatrix/governor"
)

const (
	maxFileBytes     = 8 << 20
	maxTotalBytes    = 20 << 20
	maxDocumentChars = 120000
)

var supportedExtensions = []string{".csv", ".md", ".txt"}

var errTooMuchInput = errors.New("total file size exceeds the limit; send fewer files or split into batches")

// loadDocuments reads plain-text files and tags each with its base name.
// Files that end up blank are skipped.
func loadDocuments(paths []string) ([]string, error) {
	var docs []string
	total := 0
	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		if !isSupported(ext) {
			return nil, fmt.Errorf("%s: unsupported format %q (supported: %s)", path, ext, strings.Join(supportedExtensions, ", "))
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		total += len(data)
		if total > maxTotalBytes {
			return nil, errTooMuchInput
		}
		if len(data) > maxFileBytes {
			slog.Warn("file truncated", "file", path, "bytes", maxFileBytes)
			data = data[:maxFileBytes]
		}

		text := strings.TrimSpace(strings.ToValidUTF8(string(data), "\uFFFD"))
		if governor.Len(text) > maxDocumentChars {
			slog.Warn("file truncated", "file", path, "chars", maxDocumentChars)
		}
		text = governor.EnforceMaxChars(text, maxDocumentChars)
		if text == "" {
			slog.Warn("skipping empty file", "file", path)
			continue
		}
		docs = append(docs, fmt.Sprintf("[FILE:%s]\n%s", filepath.Base(path), text))
	}
	return docs, nil
}

func isSupported(ext string) bool {
	for _, e := range supportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
