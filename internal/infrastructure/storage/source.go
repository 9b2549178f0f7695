// Package storage opens stock sheets for import from the local filesystem or
// from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// S3Scheme prefixes object storage locations, e.g. s3://stock/2024-03/sheet.csv
const S3Scheme = "s3://"

// Object is an import file that was found at a location
type Object struct {
	Location string
	Size     int64
}

// ImportSource opens import files by location
type ImportSource interface {
	// Open returns the file content. The caller closes it.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	// List returns the CSV files under a directory or key prefix, sorted by location
	List(ctx context.Context, location string) ([]Object, error)
}

// Location is a parsed s3:// location
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return S3Scheme + l.Bucket + "/" + l.Key
}

// IsS3 reports whether location points into object storage
func IsS3(location string) bool {
	return strings.HasPrefix(location, S3Scheme)
}

// ParseLocation splits s3://bucket/key. The key may be empty or end with a
// slash when the location names a prefix.
func ParseLocation(location string) (Location, error) {
	if !IsS3(location) {
		return Location{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("not an s3 location: %q", location))
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(location, S3Scheme), "/")
	if bucket == "" {
		return Location{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("missing bucket in %q", location))
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// isCSV matches the files a directory import picks up
func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// LocalSource reads import files from disk
type LocalSource struct{}

// Open opens a local file
func (LocalSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("import file %s not found", location))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	return f, nil
}

// List returns location itself for a file, or the CSV files directly inside a directory
func (LocalSource) List(_ context.Context, location string) ([]Object, error) {
	info, err := os.Stat(location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("import path %s not found", location))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if !info.IsDir() {
		return []Object{{Location: location, Size: info.Size()}}, nil
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", location, err)
	}
	var objects []Object
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		objects = append(objects, Object{Location: filepath.Join(location, e.Name()), Size: fi.Size()})
	}
	return objects, nil
}

// Router sends s3:// locations to the object store and everything else to disk
type Router struct {
	Local  ImportSource
	Remote ImportSource
}

// NewRouter creates a Router. remote may be nil when object storage is not configured.
func NewRouter(remote ImportSource) *Router {
	return &Router{Local: LocalSource{}, Remote: remote}
}

func (r *Router) pick(location string) (ImportSource, error) {
	if !IsS3(location) {
		return r.Local, nil
	}
	if r.Remote == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			"object storage is not configured, set storage.access_key and storage.secret_key")
	}
	return r.Remote, nil
}

// Open dispatches to the matching source
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	src, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, location)
}

// List dispatches to the matching source
func (r *Router) List(ctx context.Context, location string) ([]Object, error) {
	src, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	objects, err := src.List(ctx, location)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Location, b.Location) })
	return objects, nil
}

var (
	_ ImportSource = LocalSource{}
	_ ImportSource = (*Router)(nil)
)
