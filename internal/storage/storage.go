// Package storage defines the durable client storage port implemented by concrete backends.
package storage

import (
	"context"
	"strconv"
)

// Storage is a durable key/value store for client state.
// Get returns errs.ErrNotFound for a missing key; Delete of a missing key is not an error.
type Storage interface {
	// Get loads the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// Key families. The gateway reads KeyToken directly; only the session store reads KeySession;
// the progress tracker owns the CompletedKey family.
const (
	KeyToken        = "token"
	KeySession      = "auth-storage"
	completedPrefix = "completed-contents:"
)

// CompletedKey returns the Completed-Content Set key of a course.
func CompletedKey(courseID int64) string {
	return completedPrefix + strconv.FormatInt(courseID, 10)
}
