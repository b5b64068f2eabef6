package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

const backupStampLayout = "20060102_150405"

// Backup snapshots the collection's current file into backupDir under a
// timestamped name and returns the snapshot filename. The collection
// lock is held during the copy so the snapshot is never mid-save.
func (s *Store) Backup(collection, backupDir string) (string, error) {
	mu := s.collectionLock(collection)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", collection, err)
	}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("backup %s: %w", collection, err)
	}

	name := fmt.Sprintf("%s_%s.json", collection, time.Now().Format(backupStampLayout))
	if err := atomic.WriteFile(filepath.Join(backupDir, name), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("backup %s: %w", collection, err)
	}

	return name, nil
}

// ListBackups returns backup filenames in backupDir, newest first.
// With a non-empty collection only that collection's snapshots are
// returned.
func ListBackups(backupDir, collection string) ([]string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if collection != "" && !strings.HasPrefix(name, collection+"_") {
			continue
		}
		names = append(names, name)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
