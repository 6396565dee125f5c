package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/newthinker/buddy/internal/core"
)

// FileStore keeps history in memory and appends every entry to a JSON lines
// file, which is replayed on open.
type FileStore struct {
	*MemoryStore
	path string
	mu   sync.Mutex
}

// OpenFile loads path, creating its directory when needed.
func OpenFile(path string, maxSize int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	s := &FileStore{MemoryStore: NewMemoryStore(maxSize), path: path}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, core.WrapError(core.ErrArtifactFailed, fmt.Errorf("history line %d: %w", line, err))
		}
		s.MemoryStore.append(e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return s, nil
}

// Save appends e to the file and then records it in memory, so a failed
// write leaves no entry behind.
func (s *FileStore) Save(ctx context.Context, e Entry) (Entry, error) {
	e, err := s.MemoryStore.prepare(e)
	if err != nil {
		return Entry{}, err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Entry{}, core.WrapError(core.ErrArtifactFailed, fmt.Errorf("opening history: %w", err))
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return Entry{}, core.WrapError(core.ErrArtifactFailed, fmt.Errorf("writing history: %w", err))
	}
	s.MemoryStore.commit(e)
	return e, nil
}
