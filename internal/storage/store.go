// Package storage persists entity collections as JSON files, one file
// per collection, with atomic replace-on-save and per-collection
// serialization of mutating calls.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// Record is the generic key-value form entities are persisted in.
type Record map[string]any

var ErrNotFound = errors.New("record not found")

// Store manages one JSON file per collection under a base directory.
// Each collection has its own mutex, created lazily under lockTableMu,
// so concurrent mutations to the same collection are strictly ordered
// while different collections proceed independently.
type Store struct {
	dir string

	lockTableMu sync.Mutex
	locks       map[string]*sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) collectionLock(collection string) *sync.Mutex {
	s.lockTableMu.Lock()
	defer s.lockTableMu.Unlock()

	mu, ok := s.locks[collection]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[collection] = mu
	}
	return mu
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load returns all records of a collection. A missing file is an empty
// collection; malformed content is logged and also treated as empty,
// preferring availability over refusing to start.
func (s *Store) Load(collection string) ([]Record, error) {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	return s.loadLocked(collection)
}

func (s *Store) loadLocked(collection string) ([]Record, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("event=load_malformed collection=%s err=%v", collection, err)
		return []Record{}, nil
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save atomically replaces the collection file with the given records.
// The full collection is serialized to a sibling .tmp file, forced
// durable, then renamed over the target; on any failure the tmp file is
// discarded and the previous file stays untouched.
func (s *Store) Save(collection string, records []Record) error {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	return s.saveLocked(collection, records)
}

func (s *Store) saveLocked(collection string, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}

	target := s.path(collection)
	tmp := target + ".tmp"

	if err := writeDurable(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := atomic.ReplaceFile(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", collection, err)
	}

	log.Printf("event=saved collection=%s records=%d", collection, len(records))
	return nil
}

// writeDurable writes data and fsyncs before closing, so the later
// rename never exposes a partially written file.
func writeDurable(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
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

// Append adds one record, as a load-mutate-save cycle under the
// collection lock.
func (s *Store) Append(collection string, rec Record) error {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.loadLocked(collection)
	if err != nil {
		return err
	}
	return s.saveLocked(collection, append(records, rec))
}

// Update replaces the record with the given id.
func (s *Store) Update(collection, id string, rec Record) error {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.loadLocked(collection)
	if err != nil {
		return err
	}

	for i, r := range records {
		if recordID(r) == id {
			records[i] = rec
			return s.saveLocked(collection, records)
		}
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
}

// Delete removes the record with the given id.
func (s *Store) Delete(collection, id string) error {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.loadLocked(collection)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if recordID(r) != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	return s.saveLocked(collection, kept)
}

// FindByID returns the record with the given id, or ErrNotFound.
func (s *Store) FindByID(collection, id string) (Record, error) {
	records, err := s.Load(collection)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if recordID(r) == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("find %s/%s: %w", collection, id, ErrNotFound)
}

// Count returns the number of records in a collection.
func (s *Store) Count(collection string) (int, error) {
	records, err := s.Load(collection)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func recordID(r Record) string {
	id, _ := r["id"].(string)
	return id
}
