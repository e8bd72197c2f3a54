// Package firmware receives a replacement image in chunks, stages it next to
// the current one and promotes it on a successful finish.
package firmware

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/zeebo/blake3"

	"github.com/HenriMatthijssen/ePaper/internal/metrics"
)

const (
	ImageName    = "firmware.bin"
	ManifestName = "boot.json"
	stagingName  = ImageName + ".staging"
)

var (
	ErrNotStarted   = errors.New("firmware: no update in progress")
	ErrNoSpace      = errors.New("firmware: image does not fit staging area")
	ErrShortWrite   = errors.New("firmware: short write")
	ErrSizeMismatch = errors.New("firmware: size mismatch")
)

// Manifest describes the promoted image; the boot loader reads it.
type Manifest struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	BLAKE3   string    `json:"blake3"`
	UploadID string    `json:"uploadId"`
	Written  time.Time `json:"written"`
}

type upload struct {
	id       string
	name     string
	f        *os.File
	hash     *blake3.Hasher
	capacity int64
	written  int64
	err      error
}

type Receiver struct {
	dir     string
	margin  uint64
	free    func(path string) (uint64, error)
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu  sync.Mutex
	cur *upload
}

func New(dir string, margin uint64, logger zerolog.Logger, m *metrics.Metrics) *Receiver {
	return &Receiver{
		dir:     dir,
		margin:  margin,
		free:    diskFree,
		log:     logger.With().Str("component", "firmware").Logger(),
		metrics: m,
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func (r *Receiver) ImagePath() string    { return filepath.Join(r.dir, ImageName) }
func (r *Receiver) ManifestPath() string { return filepath.Join(r.dir, ManifestName) }
func (r *Receiver) stagingPath() string  { return filepath.Join(r.dir, stagingName) }

// Begin allocates the staging area. Any unfinished upload is discarded.
func (r *Receiver) Begin(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("firmware: staging dir: %w", err)
	}
	free, err := r.free(r.dir)
	if err != nil {
		return "", fmt.Errorf("firmware: free space: %w", err)
	}
	if free <= r.margin {
		r.metrics.IncFirmware("no_space")
		return "", fmt.Errorf("%w: %d bytes free, %d reserved", ErrNoSpace, free, r.margin)
	}
	f, err := os.OpenFile(r.stagingPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("firmware: open staging: %w", err)
	}
	u := &upload{
		id:       uuid.NewString(),
		name:     name,
		f:        f,
		hash:     blake3.New(),
		capacity: int64(free - r.margin),
	}
	r.cur = u
	r.log.Info().Str("upload", u.id).Str("name", name).Int64("capacity", u.capacity).Msg("update started")
	return u.id, nil
}

// Write appends one chunk. The first failure is fatal for the update; later
// chunks are ignored and the same error is returned.
func (r *Receiver) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.cur
	if u == nil {
		return ErrNotStarted
	}
	if u.err != nil {
		return u.err
	}
	if u.written+int64(len(chunk)) > u.capacity {
		return r.fail(u, fmt.Errorf("%w: %d bytes over capacity", ErrNoSpace, u.written+int64(len(chunk))-u.capacity))
	}
	n, err := u.f.Write(chunk)
	if n > 0 {
		_, _ = u.hash.Write(chunk[:n])
		u.written += int64(n)
		r.metrics.AddFirmwareBytes(n)
	}
	if err != nil || n < len(chunk) {
		return r.fail(u, fmt.Errorf("%w: wrote %d of %d bytes: %v", ErrShortWrite, n, len(chunk), err))
	}
	return nil
}

func (r *Receiver) fail(u *upload, err error) error {
	u.err = err
	r.log.Error().Err(err).Str("upload", u.id).Int64("written", u.written).Msg("update failed")
	return err
}

// End verifies the size, promotes the staged image and writes the boot
// manifest. A declared size of 0 accepts whatever was written. On any error
// the previous image stays in place.
func (r *Receiver) End(declared int64) (Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.cur
	if u == nil {
		return Manifest{}, ErrNotStarted
	}
	m, err := r.finish(u, declared)
	if err != nil {
		r.discard()
		r.metrics.IncFirmware("failed")
		r.log.Error().Err(err).Str("upload", u.id).Msg("update not applied")
		return Manifest{}, err
	}
	r.cur = nil
	r.metrics.IncFirmware("ok")
	r.log.Info().Str("upload", u.id).Int64("size", m.Size).Str("blake3", m.BLAKE3).Msg("update staged for boot")
	return m, nil
}

func (r *Receiver) finish(u *upload, declared int64) (Manifest, error) {
	if u.err != nil {
		return Manifest{}, u.err
	}
	if declared != 0 && declared != u.written {
		return Manifest{}, fmt.Errorf("%w: declared %d, received %d", ErrSizeMismatch, declared, u.written)
	}
	if u.written == 0 {
		return Manifest{}, fmt.Errorf("%w: empty image", ErrSizeMismatch)
	}
	if err := u.f.Sync(); err != nil {
		return Manifest{}, fmt.Errorf("firmware: sync: %w", err)
	}
	if err := u.f.Close(); err != nil {
		return Manifest{}, fmt.Errorf("firmware: close: %w", err)
	}
	u.f = nil

	m := Manifest{
		Name:     u.name,
		Size:     u.written,
		BLAKE3:   hex.EncodeToString(u.hash.Sum(nil)),
		UploadID: u.id,
		Written:  time.Now().UTC(),
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	tmp := r.ManifestPath() + ".tmp"
	if err := writeSynced(tmp, body); err != nil {
		return Manifest{}, err
	}
	if err := os.Rename(r.stagingPath(), r.ImagePath()); err != nil {
		_ = os.Remove(tmp)
		return Manifest{}, fmt.Errorf("firmware: promote image: %w", err)
	}
	if err := os.Rename(tmp, r.ManifestPath()); err != nil {
		return Manifest{}, fmt.Errorf("firmware: manifest: %w", err)
	}
	_ = fsyncDir(r.dir)
	return m, nil
}

// Abort drops the current upload, if any.
func (r *Receiver) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		r.log.Warn().Str("upload", r.cur.id).Msg("update aborted")
		r.metrics.IncFirmware("aborted")
	}
	r.discard()
}

// Err returns the fatal error of the current upload.
func (r *Receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	return r.cur.err
}

func (r *Receiver) discard() {
	if r.cur == nil {
		return
	}
	if r.cur.f != nil {
		_ = r.cur.f.Close()
	}
	_ = os.Remove(r.stagingPath())
	r.cur = nil
}

// ReadManifest returns the manifest of the image currently staged for boot.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}
