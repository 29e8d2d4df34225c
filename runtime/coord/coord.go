// Package coord defines the shared coordination store contract and the
// cross-process signalling protocol built on it.
//
// The coordination store is the only channel between a running supervisor and
// any other concurrently executing process (a webhook handler, a UI issuing a
// stop command). All access goes through single atomic operations; the
// protocol tolerates last-writer-wins where a backend offers nothing
// stronger.
package coord

import (
	"context"
	"errors"
	"time"
)

type (
	// Store is the minimal key/value contract required by the supervision
	// runtime.
	//
	// Store is satisfied by the Redis-backed implementation in
	// features/coord/redis and by the in-memory fake in coord/inmem. Each
	// method maps to a single atomic backend operation. Implementations must
	// be safe for concurrent use.
	Store interface {
		// Get returns the value at key. Returns ErrNotFound when absent.
		Get(ctx context.Context, key string) (string, error)
		// Set stores value at key. A positive ttl bounds the key lifetime;
		// zero means no expiry.
		Set(ctx context.Context, key, value string, ttl time.Duration) error
		// Delete removes key. Deleting an absent key is not an error.
		Delete(ctx context.Context, key string) error

		// SetAdd adds member to the set at key.
		SetAdd(ctx context.Context, key, member string) error
		// SetRemove removes member from the set at key.
		SetRemove(ctx context.Context, key, member string) error
		// SetMembers returns all members of the set at key. An absent set is
		// an empty slice, not an error.
		SetMembers(ctx context.Context, key string) ([]string, error)

		// ListPush appends value to the tail of the list at key.
		ListPush(ctx context.Context, key, value string) error
		// ListPopAll atomically drains the list at key, returning entries in
		// push order. An absent list is an empty slice, not an error.
		ListPopAll(ctx context.Context, key string) ([]string, error)
	}
)

// ErrNotFound indicates the key does not exist in the store.
var ErrNotFound = errors.New("key not found")
