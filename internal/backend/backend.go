// Package backend provides the key-value stores the inventory is persisted to.
package backend

import (
	"context"
	"errors"
)

// Backend is a key-value store holding serialized collections.
type Backend interface {
	// Get returns the value stored under key. ok is false if the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// ErrQuotaExceeded is returned by Set when the backend has no room for the value.
var ErrQuotaExceeded = errors.New("storage quota exceeded")
