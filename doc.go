// Package goSession holds the client-side session of the booking site: the
// signed-in user, the auth token, and the rule that only the token survives a
// restart.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Store], [Builder], [Config] and
// the value types ([User], [Snapshot], [Change], [Event]). Durable storage
// backends live in the storage package; the navigation guard lives in gate;
// HTTP adapters live in middleware.
//
// A Store is constructed explicitly and passed to views by handle or through
// [WithStore]. There is no package-level session.
//
// # Persistence
//
// Every mutation hands the current token to a background writer that
// overwrites one storage slot with {"token": ...}. The user record and the
// authentication flag are never persisted; after a restart the store holds
// the restored token and no user.
//
// # What this package must NOT do
//
//   - Verify credentials. Callers of Login have already done so.
//   - Return persistence errors from mutations. They go to the event channel.
//   - Run subscriber callbacks inline with the mutation that triggered them.
package goSession
