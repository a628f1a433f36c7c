package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/dvloznov/report-consolidator/internal/gcs"
)

// Uploader writes objects to cloud storage.
type Uploader interface {
	Upload(ctx context.Context, uri string, data []byte, contentType string) error
}

// Fetcher reads objects from cloud storage.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// EncodeDocument renders a document as indented UTF-8 JSON with non-ASCII
// text and markup characters kept literal.
func EncodeDocument(doc *domain.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("EncodeDocument: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDocument writes doc to a local path or a gs:// URI.
func WriteDocument(ctx context.Context, location string, doc *domain.Document, up Uploader) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	if gcs.IsURI(location) {
		if up == nil {
			return fmt.Errorf("WriteDocument: %s needs a storage client", location)
		}
		if err := up.Upload(ctx, location, data, "application/json"); err != nil {
			return fmt.Errorf("WriteDocument: %w", err)
		}
		return nil
	}
	if dir := filepath.Dir(location); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("WriteDocument: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return fmt.Errorf("WriteDocument: %w", err)
	}
	return nil
}

// ReadDocument loads a consolidated document from a local path or a gs:// URI.
func ReadDocument(ctx context.Context, location string, f Fetcher) (*domain.Document, error) {
	var data []byte
	var err error
	if gcs.IsURI(location) {
		if f == nil {
			return nil, fmt.Errorf("ReadDocument: %s needs a storage client", location)
		}
		data, err = f.Fetch(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadDocument: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ReadDocument: decoding %s: %w", location, err)
	}
	return &doc, nil
}
