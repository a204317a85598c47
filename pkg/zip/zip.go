// Package zip compresses single files into in-memory zip archives, used to
// shrink email attachments that exceed the mailer's size limit.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Compress wraps data in a zip archive containing one entry named filename.
func Compress(filename string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	header := &zip.FileHeader{
		Name:     filename,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	entry, err := w.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("zip: create entry: %w", err)
	}
	if _, err := entry.Write(data); err != nil {
		return nil, fmt.Errorf("zip: write entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
