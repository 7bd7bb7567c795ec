// Package storage provides the durable key-value backends that hold the
// persisted session history and detection log blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Blob keys shared by every backend.
const (
	SessionsKey   = "faceDetectionSessions"
	DetectionsKey = "faceDetectionHistory"
)

// ErrNotFound is returned by Get when a key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// KV is a whole-value key-value store. Put overwrites the previous value
// entirely; there is no partial update.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the backend named by driver rooted at path.
func Open(driver, path string) (KV, error) {
	switch driver {
	case DriverFile, "":
		return NewFile(path)
	case DriverSQLite:
		return NewSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q (use file, sqlite, or memory)", driver)
	}
}
