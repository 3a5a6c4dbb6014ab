package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const fileSlotExt = ".json"

// File stores each slot as <dir>/<slot>.json. Writes go through a temporary
// file and a rename, so a reader never sees a half-written snapshot.
type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Dir returns the directory holding the slot files.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(slot string) string {
	return filepath.Join(f.dir, slot+fileSlotExt)
}

func (f *File) Load(ctx context.Context, slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(slot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (f *File) Save(ctx context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := atomic.WriteFile(f.path(slot), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
