package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tickScope/internal/model"
)

// JsonlStore keeps one pool snapshot per line in a local file.
type JsonlStore struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStore(path string) *JsonlStore {
	return &JsonlStore{path: path}
}

// SaveSnapshots merges snaps into the file, replacing pools already present,
// and rewrites it atomically.
func (s *JsonlStore) SaveSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	byPool := make(map[string]model.PoolSnapshot, len(existing)+len(snaps))
	for _, snap := range existing {
		byPool[strings.ToLower(snap.Pool)] = snap
	}
	for _, snap := range snaps {
		byPool[strings.ToLower(snap.Pool)] = snap
	}

	keys := make([]string, 0, len(byPool))
	for key := range byPool {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot tmp: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, key := range keys {
		line, err := json.Marshal(byPool[key])
		if err != nil {
			file.Close()
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			file.Close()
			return fmt.Errorf("write snapshot: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			file.Close()
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshots reads every stored snapshot. A missing file is an empty store.
func (s *JsonlStore) LoadSnapshots(ctx context.Context) ([]model.PoolSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JsonlStore) load() ([]model.PoolSnapshot, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	var out []model.PoolSnapshot
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var snap model.PoolSnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return out, nil
}
