// Package source loads input articles from tabular files.
package source

import (
	"context"
	"fmt"
	"strings"

	"ArgumentMiner/internal/domain"
)

// Table is a header row plus data rows. Rows may be shorter than the header.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of column or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// ReadOptions carries format-specific knobs.
type ReadOptions struct {
	Sheet string
}

// Reader captures a single file format implementation.
type Reader interface {
	Extension() string
	Read(ctx context.Context, path string, opts ReadOptions) (Table, error)
}

// Registry keeps a mapping from file extensions to readers.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{readers: map[string]Reader{}}
}

// DefaultRegistry knows CSV, XLSX and JSON.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CSVReader{})
	r.Register(XLSXReader{})
	r.Register(JSONReader{})
	return r
}

// Register adds or replaces a reader.
func (r *Registry) Register(reader Reader) {
	if r.readers == nil {
		r.readers = map[string]Reader{}
	}
	r.readers[strings.ToLower(reader.Extension())] = reader
}

// Resolve returns the reader for ext (with leading dot).
func (r *Registry) Resolve(ext string) (Reader, error) {
	if reader, ok := r.readers[strings.ToLower(ext)]; ok {
		return reader, nil
	}
	return nil, fmt.Errorf("%w: unsupported file format %q", domain.ErrConfiguration, ext)
}
