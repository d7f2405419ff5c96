// Package store provides the persistence backends for the engine. Two
// implementations of the core storage interface exist: an in-memory store
// for tests and single-process deployments, and a SQLite store for
// durable state.
package store

import "github.com/foodbridge/dispatch/core/storage"

// Store mirrors the core storage interface.
type Store = storage.Store

// ErrNotFound mirrors the core sentinel for missing records.
var ErrNotFound = storage.ErrNotFound

// ErrStaleTransition mirrors the core sentinel for failed auction
// compare-and-set transitions.
var ErrStaleTransition = storage.ErrStaleTransition

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
)
