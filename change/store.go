// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package change

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/stagehand/pkg/logging"
)

// =============================================================================
// Store
// =============================================================================

// Store owns the pending and applied change maps and their disk mirrors.
//
// # Description
//
// In-memory state is authoritative for the running process. Each record
// is mirrored to <root>/pending/<id>.json or <root>/applied/<id>.json so
// state is visible after a crash; mirror failures are logged and never
// surfaced. On construction both mirror directories are reloaded, so
// staged work survives a restart. Records that fail typed decoding are
// skipped with a warning rather than trusted.
//
// # Thread Safety
//
// Safe for concurrent use. Map access is guarded by an RWMutex and
// lifecycle operations serialize per change id via LockID.
type Store struct {
	mu      sync.RWMutex
	pending map[string]*PendingChange
	applied map[string]*AppliedChange

	root   string
	logger *logging.Logger

	idLocks   map[string]*sync.Mutex
	idLocksMu sync.Mutex
}

// idLength is the number of uuid hex characters kept for change ids.
const idLength = 12

// NewStore creates a Store rooted at dir, reloading any mirrored records.
//
// # Inputs
//
//   - dir: State directory; pending/ and applied/ are created inside it.
//   - logger: Destination for mirror warnings. Nil uses the default logger.
//
// # Outputs
//
//   - *Store: Ready-to-use store.
//   - error: Non-nil when the mirror directories cannot be created.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Store{
		pending: make(map[string]*PendingChange),
		applied: make(map[string]*AppliedChange),
		root:    dir,
		logger:  logger,
		idLocks: make(map[string]*sync.Mutex),
	}

	for _, sub := range []string{s.pendingDir(), s.appliedDir()} {
		if err := os.MkdirAll(sub, 0750); err != nil {
			return nil, fmt.Errorf("creating state directory %s: %w", sub, err)
		}
	}

	s.reload()
	return s, nil
}

func (s *Store) pendingDir() string { return filepath.Join(s.root, "pending") }
func (s *Store) appliedDir() string { return filepath.Join(s.root, "applied") }

// reload reads both mirror directories into memory. Undecodable records
// are skipped with a warning.
func (s *Store) reload() {
	loadDir(s.pendingDir(), s.logger, func(id string, data []byte) {
		var pc PendingChange
		if err := decodeStrict(data, &pc); err != nil || pc.ID != id {
			s.logger.Warn("skipping undecodable pending record", "id", id, "error", err)
			return
		}
		s.pending[id] = &pc
	})
	loadDir(s.appliedDir(), s.logger, func(id string, data []byte) {
		var ac AppliedChange
		if err := decodeStrict(data, &ac); err != nil || ac.ID != id {
			s.logger.Warn("skipping undecodable applied record", "id", id, "error", err)
			return
		}
		s.applied[id] = &ac
	})
}

// loadDir feeds every .json file in dir to fn, keyed by basename.
func loadDir(dir string, logger *logging.Logger, fn func(id string, data []byte)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("reading mirror directory", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("reading mirror record", "file", name, "error", err)
			continue
		}
		fn(strings.TrimSuffix(name, ".json"), data)
	}
}

// decodeStrict unmarshals JSON, rejecting unknown fields.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// =============================================================================
// Id Generation and Locking
// =============================================================================

// NewID returns a fresh change id, regenerating on the off chance the
// short form collides with an existing pending or applied id.
func (s *Store) NewID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
		if _, ok := s.pending[id]; ok {
			continue
		}
		if _, ok := s.applied[id]; ok {
			continue
		}
		return id
	}
}

// LockID acquires the per-id mutex and returns its unlock function, so
// apply/reject/undo on the same id cannot interleave.
func (s *Store) LockID(id string) func() {
	s.idLocksMu.Lock()
	lock, ok := s.idLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.idLocks[id] = lock
	}
	s.idLocksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// =============================================================================
// Pending Records
// =============================================================================

// PutPending stores a pending record and mirrors it to disk.
func (s *Store) PutPending(pc *PendingChange) {
	s.mu.Lock()
	s.pending[pc.ID] = pc
	s.mu.Unlock()

	s.mirror(filepath.Join(s.pendingDir(), pc.ID+".json"), pc)
}

// GetPending returns the pending record for id.
func (s *Store) GetPending(id string) (*PendingChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.pending[id]
	if !ok {
		return nil, &NotFoundError{ID: id, State: "pending"}
	}
	return pc, nil
}

// DeletePending drops the pending record from memory and disk.
func (s *Store) DeletePending(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()

	s.unmirror(filepath.Join(s.pendingDir(), id+".json"))
}

// Pending returns all pending records sorted oldest first.
func (s *Store) Pending() []*PendingChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*PendingChange, 0, len(s.pending))
	for _, pc := range s.pending {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// =============================================================================
// Applied Records
// =============================================================================

// PutApplied stores an applied record and mirrors it to disk.
func (s *Store) PutApplied(ac *AppliedChange) {
	s.mu.Lock()
	s.applied[ac.ID] = ac
	s.mu.Unlock()

	s.mirror(filepath.Join(s.appliedDir(), ac.ID+".json"), ac)
}

// GetApplied returns the applied record for id.
func (s *Store) GetApplied(id string) (*AppliedChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ac, ok := s.applied[id]
	if !ok {
		return nil, &NotFoundError{ID: id, State: "applied"}
	}
	return ac, nil
}

// DeleteApplied drops the applied record from memory and disk.
func (s *Store) DeleteApplied(id string) {
	s.mu.Lock()
	delete(s.applied, id)
	s.mu.Unlock()

	s.unmirror(filepath.Join(s.appliedDir(), id+".json"))
}

// Applied returns all applied records sorted newest first, so the most
// recent undo candidate leads the list. Records applied at the same
// instant order by ID to keep the listing stable across calls.
func (s *Store) Applied() []*AppliedChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*AppliedChange, 0, len(s.applied))
	for _, ac := range s.applied {
		out = append(out, ac)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// =============================================================================
// Disk Mirror
// =============================================================================

// mirror writes one record file. Failures are logged, never surfaced:
// the in-memory record remains authoritative for the running process.
func (s *Store) mirror(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("encoding mirror record", "file", path, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		s.logger.Warn("writing mirror record", "file", path, "error", err)
	}
}

// unmirror removes one record file, tolerating its absence.
func (s *Store) unmirror(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing mirror record", "file", path, "error", err)
	}
}
