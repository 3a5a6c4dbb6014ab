// Package middleware adapts the session store and the auth gate to net/http
// for hosts that render the booking site's views as HTTP pages.
//
// # Handlers
//
//   - [Gate] serves an entry page that redirects to the login or landing
//     route according to the session token.
//   - [RequireSession] protects a handler: no token redirects to login,
//     otherwise the store is injected into the request context.
//
// # What this package must NOT do
//
//   - Mutate the session. Login and logout belong to the host's handlers.
//   - Decide routing beyond token presence. That is the gate's rule.
package middleware
