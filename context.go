package goSession

import "context"

type storeContextKey struct{}

// WithStore attaches s to ctx so views and handlers can reach the session
// without a package-level global.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// StoreFromContext returns the store attached by [WithStore].
func StoreFromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}

	s, ok := ctx.Value(storeContextKey{}).(*Store)
	return s, ok && s != nil
}
