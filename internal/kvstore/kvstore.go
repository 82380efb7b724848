// Package kvstore defines the durable key-value store the account layer
// persists into, plus its SQLite and in-memory implementations.
//
// The contract is deliberately tiny — string keys, string values — because
// the account record is stored as one serialized JSON blob under one key.
// Callers that need structure encode it themselves.
package kvstore

import "context"

// Store is an asynchronous durable key-value store.
//
// Get returns (value, true, nil) when the key exists and ("", false, nil)
// when it does not; absence is not an error. All operations accept a context
// so a cancelled request aborts the underlying I/O.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}
