// Package core defines the object storage contract shared by the blob
// backends that persist unit-of-work payloads.
package core

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a flat key/value object store. Keys are slash separated.
type Store interface {
	// Put writes body at key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte) (Info, error)
	// Get returns the object body. Missing keys return ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, Info, error)
	// Head returns metadata only. Missing keys return ErrNotFound.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound reports a missing object.
var ErrNotFound = errors.New("blob: not found")
