// Package session holds the member's bearer token and derives
// authentication headers from it.
//
// A Session wraps a Store. Stores are durable key-value holders scoped
// to one device or install; the package ships a file store for the CLI,
// a Redis store for shared deployments and an in-memory store.
package session

import (
	"context"
	"errors"
)

// Well-known store keys.
const (
	KeyToken = "token"
	KeyName  = "name"
)

// ErrNotFound is returned by Store.Get when the key holds no value.
var ErrNotFound = errors.New("session: key not found")

// Store is a persisted string key-value holder.
//
// Implementations must be safe for concurrent use. Single-key reads and
// writes are atomic and the last writer wins.
type Store interface {
	// Get returns the value under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
