// Package cache persists resolved resource metadata so listing and filtering
// never have to wait on configuration resolution.
//
// The cache is a performance hint, never authoritative: every consumer has a
// scanner-backed fallback, and a missing or corrupt document always degrades
// to an empty cache instead of an error.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
)

const documentVersion = 1

// RelativePath is the cache document location under the project root.
var RelativePath = filepath.Join(".blocksmith", "cache", "resources.json")

// Entry holds cached metadata for one resource, keyed by resource name.
type Entry struct {
	Kind        models.ResourceKind `json:"kind"`
	Category    string              `json:"category,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	DisplayName string              `json:"displayName"`
	Description string              `json:"description,omitempty"`
	Version     string              `json:"version,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type document struct {
	Version int               `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Cache is the in-process handle on the persisted metadata document.
type Cache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Load reads the cache document under root. It never fails: a missing file or
// a parse error yields an empty cache.
func Load(root string) *Cache {
	c := &Cache{
		path:    filepath.Join(root, RelativePath),
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.Entries == nil {
		logger.Log.Debugf("metadata cache unreadable, starting fresh: %v", err)
		return c
	}
	c.entries = doc.Entries
	return c
}

// Save writes the whole document. Writes are infrequent (build, create, and
// config-change events), so there is no partial-write path.
func (c *Cache) Save() error {
	c.mu.RLock()
	doc := document{Version: documentVersion, Entries: c.entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// Get retrieves the cached entry for a resource name.
func (c *Cache) Get(name string) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	return entry, ok
}

// Update upserts the entry for one resource from its resolved configuration
// and persists the document. Concurrent updates for the same name are
// last-write-wins, which the resolution contract tolerates.
func (c *Cache) Update(name string, kind models.ResourceKind, cfg *models.ResourceConfig, version string) error {
	entry := &Entry{
		Kind:      kind,
		Version:   version,
		UpdatedAt: time.Now(),
	}
	if cfg != nil {
		entry.Category = cfg.Category
		entry.Tags = cfg.Tags
		entry.Description = cfg.Description
		entry.DisplayName = cfg.Name
	}
	if entry.DisplayName == "" {
		entry.DisplayName = models.DisplayNameFromDir(name)
	}

	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()

	return c.Save()
}

// Remove deletes one entry and persists the document. Removing an unknown
// name is a no-op.
func (c *Cache) Remove(name string) error {
	c.mu.Lock()
	_, ok := c.entries[name]
	delete(c.entries, name)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Save()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
