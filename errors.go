package goSession

import "errors"

var (
	// ErrPersistenceWrite reports that the token snapshot could not be written
	// to durable storage. It is delivered on the event channel, never returned
	// from a mutation.
	ErrPersistenceWrite = errors.New("session persistence write failed")
	// ErrPersistenceRead reports that the token snapshot could not be read at
	// startup. The store starts with an empty session.
	ErrPersistenceRead = errors.New("session persistence read failed")
	// ErrSnapshotCorrupt reports a stored snapshot that does not decode.
	ErrSnapshotCorrupt = errors.New("session snapshot corrupt")
	// ErrStoreClosed reports a write submitted after Close.
	ErrStoreClosed = errors.New("session store closed")
	// ErrStorageRequired is returned by Build when no storage backend is set.
	ErrStorageRequired = errors.New("session storage required")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid session config")
)
