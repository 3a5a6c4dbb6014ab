// Package storage provides durable client storage backends for the session
// token snapshot.
//
// # Slots
//
// A backend maps a slot name to an opaque byte value. The session store uses
// exactly one slot and overwrites it on every mutation; concurrent writers
// from other processes are last-write-wins.
//
// # Backends
//
//   - [Memory]: process-local map, for tests and ephemeral hosts.
//   - [File]: one file per slot, replaced atomically.
//   - [Redis]: one key per slot.
//   - [SQLite]: one row per slot.
//
// # What this package must NOT do
//
//   - Import goSession (no upward imports).
//   - Interpret slot contents.
package storage
