package pageloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/report-consolidator/internal/gcs"
)

// Source lists and reads per-page JSON documents.
type Source interface {
	// List returns page names in processing order.
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	String() string
}

// DirSource reads *.json files from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) String() string { return s.Dir }

func (s DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("DirSource.List: reading %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isPageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Dir, name))
}

// ObjectStore is the subset of gcs.StorageService a GCSSource needs.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSSource reads *.json objects under a bucket prefix.
type GCSSource struct {
	Store  ObjectStore
	Bucket string
	Prefix string
}

// NewGCSSource builds a GCSSource from gs://bucket/prefix.
func NewGCSSource(store ObjectStore, uri string) (*GCSSource, error) {
	bucket, prefix, err := gcs.ParseURI(uri, true)
	if err != nil {
		return nil, fmt.Errorf("NewGCSSource: %w", err)
	}
	return &GCSSource{Store: store, Bucket: bucket, Prefix: prefix}, nil
}

func (s *GCSSource) String() string { return gcs.URI(s.Bucket, s.Prefix) }

func (s *GCSSource) List(ctx context.Context) ([]string, error) {
	objects, err := s.Store.List(ctx, s.Bucket, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.List: %w", err)
	}
	var names []string
	for _, o := range objects {
		if isPageFile(o) {
			names = append(names, o)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *GCSSource) Read(ctx context.Context, name string) ([]byte, error) {
	return s.Store.Fetch(ctx, gcs.URI(s.Bucket, name))
}

// NewSource picks a GCSSource for gs:// locations and a DirSource otherwise.
func NewSource(location string, store ObjectStore) (Source, error) {
	if gcs.IsURI(location) {
		if store == nil {
			return nil, fmt.Errorf("NewSource: %s needs a storage client", location)
		}
		return NewGCSSource(store, location)
	}
	return DirSource{Dir: location}, nil
}

func isPageFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
