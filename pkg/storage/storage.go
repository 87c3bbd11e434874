// Package storage archives uploaded report files on the local filesystem.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when no archived file matches the id.
var ErrFileNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived report
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Unit        string    `json:"unit"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the unit directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the archive operations
type Storage interface {
	// Upload stores a report and returns its metadata
	Upload(ctx context.Context, unit string, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a report by its ID
	Download(ctx context.Context, unit string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a report by its ID
	Delete(ctx context.Context, unit string, fileID uuid.UUID) error

	// List returns every report archived for a unit, oldest first
	List(ctx context.Context, unit string) ([]*FileInfo, error)

	// GetInfo returns metadata for a report without opening it
	GetInfo(ctx context.Context, unit string, fileID uuid.UUID) (*FileInfo, error)
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates the archive described by cfg
func New(cfg *Config) (Storage, error) {
	return NewLocalStorage(cfg.LocalPath)
}
