// Package flashblock emulates the reserved configuration area of device
// flash: one fixed-size block at a fixed offset inside a backing file. The
// block is only ever read, overwritten or zero-filled as a whole.
package flashblock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

var (
	// ErrAbsent means the backing file does not yet cover the block.
	ErrAbsent   = errors.New("flashblock: block not present")
	ErrTooLarge = errors.New("flashblock: data exceeds block size")
)

type Block struct {
	path   string
	offset int64
	size   int
}

func New(path string, offset int64, size int) *Block {
	return &Block{path: path, offset: offset, size: size}
}

func (b *Block) Path() string { return b.path }
func (b *Block) Size() int    { return b.size }

// Read returns the whole block. A missing file, or one that ends before the
// block does, yields ErrAbsent.
func (b *Block) Read() ([]byte, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAbsent
		}
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, b.size)
	n, err := f.ReadAt(buf, b.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n < b.size {
		return nil, ErrAbsent
	}
	return buf, nil
}

// Write overwrites the block with data followed by zero padding and fsyncs
// before returning. Bytes outside the block are left untouched.
func (b *Block) Write(ctx context.Context, data []byte) error {
	if len(data) > b.size {
		return ErrTooLarge
	}
	buf := make([]byte, b.size)
	copy(buf, data)
	return b.put(ctx, buf)
}

// Zero fills the whole block with zero bytes.
func (b *Block) Zero(ctx context.Context) error {
	return b.put(ctx, make([]byte, b.size))
}

func (b *Block) put(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return WithLock(b.path, func() error {
		_, statErr := os.Stat(b.path)
		created := errors.Is(statErr, os.ErrNotExist)
		f, err := os.OpenFile(b.path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		n, err := f.WriteAt(buf, b.offset)
		if err != nil {
			return fmt.Errorf("flashblock: write: %w", err)
		}
		if n != len(buf) {
			return io.ErrShortWrite
		}
		if err := f.Sync(); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if created {
			return fsyncDir(dir)
		}
		return nil
	})
}

// WithLock holds an exclusive advisory lock (path+".lock") while fn runs.
func WithLock(path string, fn func() error) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	unlock, err := flockExclusive(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// fsyncDir persists directory metadata; no-op on Windows.
func fsyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
