// Package store holds the configuration record. The Store is the only
// owner of the record: handlers get it by reference and every mutation is
// written through to the block before the call returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/internal/flashblock"
	"github.com/HenriMatthijssen/ePaper/internal/record"
)

// Block is the persistent medium holding the encoded record.
type Block interface {
	Read() ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Zero(ctx context.Context) error
}

// Origin says where the in-memory record came from at load time.
type Origin string

const (
	OriginStored   Origin = "stored"
	OriginAbsent   Origin = "absent"
	OriginBlank    Origin = "blank"
	OriginCorrupt  Origin = "corrupt"
	OriginVersion  Origin = "version"
	OriginUpgraded Origin = "upgraded"
)

type Store struct {
	mu     sync.Mutex
	block  Block
	rec    record.Record
	origin Origin
	log    zerolog.Logger
	commit func(op string)
}

// Open loads the record. Anything unusable (absent, blank, corrupt, or a
// different schema major version) is replaced by factory defaults, which are
// saved immediately.
func Open(ctx context.Context, block Block, logger zerolog.Logger) (*Store, error) {
	s := &Store{block: block, log: logger.With().Str("component", "store").Logger()}
	rec, origin, err := load(block)
	if err != nil {
		return nil, err
	}
	s.rec, s.origin = rec, origin
	if origin != OriginStored {
		s.log.Info().Str("origin", string(origin)).Float32("version", rec.SchemaVersion).Msg("configuration reset to build layout")
		if err := s.write(ctx, "load"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func load(block Block) (record.Record, Origin, error) {
	data, err := block.Read()
	if errors.Is(err, flashblock.ErrAbsent) {
		return record.Defaults(), OriginAbsent, nil
	}
	if err != nil {
		return record.Record{}, "", fmt.Errorf("store: read block: %w", err)
	}
	rec, err := record.Decode(data)
	switch {
	case errors.Is(err, record.ErrBlank):
		return record.Defaults(), OriginBlank, nil
	case errors.Is(err, record.ErrShort), errors.Is(err, record.ErrChecksum):
		return record.Defaults(), OriginCorrupt, nil
	case err != nil:
		return record.Record{}, "", err
	}
	if !record.SameMajor(rec.SchemaVersion, record.BuildVersion) {
		return record.Defaults(), OriginVersion, nil
	}
	if rec.SchemaVersion != record.BuildVersion {
		rec.SchemaVersion = record.BuildVersion
		return rec, OriginUpgraded, nil
	}
	return rec, OriginStored, nil
}

// OnCommit registers a hook called after every successful block write.
func (s *Store) OnCommit(fn func(op string)) {
	s.mu.Lock()
	s.commit = fn
	s.mu.Unlock()
}

func (s *Store) Origin() Origin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// Save replaces the whole record and persists it.
func (s *Store) Save(ctx context.Context, r record.Record) error {
	_, err := s.Update(ctx, func(cur *record.Record) error {
		*cur = r
		return nil
	})
	return err
}

// Update applies fn to a copy of the record and writes the result through.
// If fn returns an error nothing is changed. If the write fails the
// in-memory record keeps its previous value.
func (s *Store) Update(ctx context.Context, fn func(*record.Record) error) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.rec
	if err := fn(&next); err != nil {
		return s.rec, err
	}
	prev := s.rec
	s.rec = next
	if err := s.write(ctx, "save"); err != nil {
		s.rec = prev
		return prev, err
	}
	return next, nil
}

// Erase zero-fills the reserved block. The in-memory record becomes the
// factory defaults, which is what the next load will produce. Callers
// restart the device afterwards.
func (s *Store) Erase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.block.Zero(ctx); err != nil {
		return fmt.Errorf("store: erase: %w", err)
	}
	s.rec = record.Defaults()
	s.log.Warn().Msg("configuration block erased")
	if s.commit != nil {
		s.commit("erase")
	}
	return nil
}

// write persists s.rec; callers hold s.mu.
func (s *Store) write(ctx context.Context, op string) error {
	if err := s.block.Write(ctx, record.Encode(s.rec)); err != nil {
		return fmt.Errorf("store: write block: %w", err)
	}
	if s.commit != nil {
		s.commit(op)
	}
	return nil
}
