// Package gate implements the navigation guard that sends a visitor to the
// login view or to the authenticated landing view depending on whether the
// session holds a token.
//
// A [Gate] is activated by the view that hosts it. Activation evaluates the
// token once and navigates; while active the gate re-evaluates after every
// token change, on the session store's scheduler. A gate never navigates
// twice for the same token value and never navigates after [Gate.Deactivate].
//
// The gate surfaces no errors. Route identifiers come from [Routes] and are
// owned by the host's routing table.
package gate
