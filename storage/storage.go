package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Load when the slot holds no value.
	ErrNotFound = errors.New("storage slot not found")
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidSlot is returned for empty slot names or names that would
	// escape the backend namespace.
	ErrInvalidSlot = errors.New("invalid storage slot")
)

// Storage is durable key/value storage scoped to one client device.
type Storage interface {
	// Load returns the value in slot, or ErrNotFound.
	Load(ctx context.Context, slot string) ([]byte, error)
	// Save overwrites the value in slot.
	Save(ctx context.Context, slot string, data []byte) error
}

// ValidateSlot rejects slot names no backend can store safely.
func ValidateSlot(slot string) error {
	if strings.TrimSpace(slot) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSlot)
	}
	if strings.ContainsAny(slot, "/\\") || slot == "." || slot == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}
