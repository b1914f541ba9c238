// Package storage handles on-disk preview content for resources.
//
// Preview content is deliberately never cached in memory: every read goes to
// disk so edits made by other processes (or a crashed editor session) are
// always visible. Writes replace the whole document via a temp-file rename so
// a concurrent read never observes a partially written file.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
)

const previewFileName = "preview.json"

// PreviewPath returns the preview document path inside a resource directory.
func PreviewPath(resourceDir string) string {
	return filepath.Join(resourceDir, previewFileName)
}

// PreviewStore serializes preview writes per resource directory. The editing
// client debounces its own saves, but the server must not rely on that: two
// clients racing on the same file is otherwise unguarded.
type PreviewStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPreviewStore creates a preview store.
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{locks: make(map[string]*sync.Mutex)}
}

func (s *PreviewStore) lockFor(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[dir]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[dir] = l
	return l
}

// Read returns the preview content of a resource directory. A missing file is
// equivalent to an empty object.
func (s *PreviewStore) Read(resourceDir string) (map[string]interface{}, error) {
	data, err := os.ReadFile(PreviewPath(resourceDir))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, errors.PreviewIOError("read", err)
	}

	var content map[string]interface{}
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, errors.PreviewIOError("decode", err)
	}
	if content == nil {
		content = map[string]interface{}{}
	}
	return content, nil
}

// Write overwrites the preview document with exactly the provided object.
// There is no server-side merge here: merge responsibility belongs to the
// editing client's save reconciliation.
func (s *PreviewStore) Write(resourceDir string, content map[string]interface{}) error {
	lock := s.lockFor(resourceDir)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return errors.PreviewIOError("encode", err)
	}

	target := PreviewPath(resourceDir)
	tmp, err := os.CreateTemp(resourceDir, ".preview-*.json")
	if err != nil {
		return errors.PreviewIOError("write", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.PreviewIOError("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.PreviewIOError("write", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.PreviewIOError("write", err)
	}
	return nil
}
