// Package service holds the dev session shared by the HTTP server, the file
// watcher and the CLI: the in-memory resource list, lazy configuration
// resolution, preview access and change eventing.
package service

import (
	"fmt"
	"sync"

	"github.com/blocksmith-dev/blocksmith/internal/backend"
	"github.com/blocksmith-dev/blocksmith/internal/cache"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/schema"
	"github.com/blocksmith-dev/blocksmith/internal/storage"
)

// Event types broadcast to connected editors.
const (
	EventContentUpdated   = "content-updated"
	EventConfigUpdated    = "config-updated"
	EventValidationErrors = "validation-errors"
	EventResourceAdded    = "resource-added"
	EventResourceRemoved  = "resource-removed"
)

// Event is one change notification.
type Event struct {
	Type     string      `json:"type"`
	Resource string      `json:"resource,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// EventSink receives change notifications, usually a websocket hub. A nil
// sink on the session disables eventing.
type EventSink interface {
	Broadcast(Event)
}

// EditableState is everything an editing surface needs to render a resource.
type EditableState struct {
	Resource *models.Resource       `json:"resource"`
	Schema   models.FieldSchema     `json:"schema"`
	Content  map[string]interface{} `json:"content"`
}

// Session is the shared state of one dev run.
type Session struct {
	mu        sync.RWMutex
	scanner   *scanner.Scanner
	cache     *cache.Cache
	previews  *storage.PreviewStore
	backend   *backend.Client
	sink      EventSink
	resources []*models.Resource

	// writeLocks serializes preview writers per resource so concurrent
	// saves from different editor surfaces cannot interleave.
	writeMu    sync.Mutex
	writeLocks map[string]*sync.Mutex
}

// NewSession wires a session over a scanner. cache and backend may be nil;
// the session then skips cache annotation and backend proxying.
func NewSession(sc *scanner.Scanner, metaCache *cache.Cache, backendClient *backend.Client) *Session {
	return &Session{
		scanner:    sc,
		cache:      metaCache,
		previews:   storage.NewPreviewStore(),
		backend:    backendClient,
		writeLocks: make(map[string]*sync.Mutex),
	}
}

// SetEventSink attaches the change notification sink.
func (s *Session) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Backend returns the publishing backend client, which may be nil.
func (s *Session) Backend() *backend.Client {
	return s.backend
}

// Start populates the resource list with a fast lenient scan. Configuration
// is not resolved here; it loads lazily per resource on first access so
// startup cost stays proportional to the directory listing.
func (s *Session) Start() error {
	resources, err := s.scanner.Scan(scanner.Options{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.resources = resources
	s.mu.Unlock()

	logger.Log.Infof("session started with %d resource(s)", len(resources))
	return nil
}

// Resources returns the known resources, annotated with cached metadata for
// resources whose configuration has not been resolved yet. The cache is
// advisory: resolved configuration always wins over a cache entry.
func (s *Session) Resources() []*models.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		if !r.ConfigLoaded && s.cache != nil {
			if entry, ok := s.cache.Get(r.Name); ok && entry.Kind == r.Kind {
				annotated := *r
				if entry.DisplayName != "" {
					annotated.DisplayName = entry.DisplayName
				}
				if entry.Description != "" {
					annotated.Description = entry.Description
				}
				annotated.Category = entry.Category
				annotated.Tags = entry.Tags
				out = append(out, &annotated)
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Get returns a resource by name, blocks taking precedence over templates on
// a name collision.
func (s *Session) Get(name string) (*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(name)
}

func (s *Session) findLocked(name string) (*models.Resource, error) {
	for _, kind := range []models.ResourceKind{models.KindBlock, models.KindTemplate} {
		for _, r := range s.resources {
			if r.Kind == kind && r.Name == name {
				return r, nil
			}
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("resource %q", name))
}

// Resolve returns a resource with its configuration loaded, resolving it on
// first access. Resolution is idempotent; a resource without a configuration
// file resolves to itself.
func (s *Session) Resolve(name string) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.findLocked(name)
	if err != nil {
		return nil, err
	}
	if r.ConfigLoaded {
		return r, nil
	}
	return s.reloadLocked(r)
}

// reloadLocked re-runs the single-resource loader and swaps the result into
// the session list. Caller holds s.mu.
func (s *Session) reloadLocked(r *models.Resource) (*models.Resource, error) {
	fresh, err := s.scanner.Load(r.Kind, r.Name, scanner.Options{
		LoadConfig:     true,
		ValidateSchema: true,
	})
	if err != nil {
		return nil, err
	}

	for i, existing := range s.resources {
		if existing.Kind == r.Kind && existing.Name == r.Name {
			s.resources[i] = fresh
			break
		}
	}

	if s.cache != nil && fresh.HasConfig {
		cfg := &models.ResourceConfig{
			Name:        fresh.DisplayName,
			Description: fresh.Description,
			Category:    fresh.Category,
			Tags:        fresh.Tags,
			Schema:      fresh.Schema,
		}
		if err := s.cache.Update(fresh.Name, fresh.Kind, cfg, fresh.Version); err != nil {
			logger.Log.Warnf("metadata cache update failed: %v", err)
		}
	}
	return fresh, nil
}

// EditableState resolves a resource and merges its schema defaults with a
// fresh read of its preview content.
func (s *Session) EditableState(name string) (*EditableState, error) {
	r, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	content, err := s.previews.Read(r.Path)
	if err != nil {
		return nil, err
	}

	return &EditableState{
		Resource: r,
		Schema:   r.Schema,
		Content:  schema.Merge(r.Schema, content),
	}, nil
}

// ReadPreview returns the raw preview document for a resource. Missing
// documents read as empty.
func (s *Session) ReadPreview(name string) (map[string]interface{}, error) {
	r, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return s.previews.Read(r.Path)
}

// WritePreview replaces a resource's preview document and notifies editors.
// Writes to the same resource are serialized.
func (s *Session) WritePreview(name string, content map[string]interface{}) error {
	r, err := s.Get(name)
	if err != nil {
		return err
	}

	lock := s.previewLock(r.Name)
	lock.Lock()
	err = s.previews.Write(r.Path, content)
	lock.Unlock()
	if err != nil {
		return err
	}
	s.broadcast(Event{Type: EventContentUpdated, Resource: name, Payload: content})
	return nil
}

func (s *Session) previewLock(name string) *sync.Mutex {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	l, ok := s.writeLocks[name]
	if !ok {
		l = &sync.Mutex{}
		s.writeLocks[name] = l
	}
	return l
}

// ReloadConfig re-resolves a resource after its configuration file changed,
// broadcasts the outcome and refreshes the metadata cache. Validation
// findings degrade to an event rather than an error so a half-saved file
// does not kill the session.
func (s *Session) ReloadConfig(kind models.ResourceKind, name string) error {
	s.mu.Lock()
	r, err := s.findLocked(name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	fresh, err := s.scanner.Load(kind, name, scanner.Options{LoadConfig: true})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for i, existing := range s.resources {
		if existing.Kind == r.Kind && existing.Name == r.Name {
			s.resources[i] = fresh
			break
		}
	}
	s.mu.Unlock()

	if findings := schema.Validate(fresh.Schema, s.scanner.Registry()); len(findings) > 0 {
		s.broadcast(Event{Type: EventValidationErrors, Resource: name, Payload: findings})
	} else {
		s.broadcast(Event{Type: EventValidationErrors, Resource: name, Payload: []schema.FieldError{}})
	}
	s.broadcast(Event{Type: EventConfigUpdated, Resource: name})

	if s.cache != nil && fresh.HasConfig {
		cfg := &models.ResourceConfig{
			Name:        fresh.DisplayName,
			Description: fresh.Description,
			Category:    fresh.Category,
			Tags:        fresh.Tags,
			Schema:      fresh.Schema,
		}
		if err := s.cache.Update(name, kind, cfg, fresh.Version); err != nil {
			logger.Log.Warnf("metadata cache update failed: %v", err)
		}
	}
	return nil
}

// AddResource registers a newly created resource directory and notifies
// editors. Re-adding a known resource is a no-op.
func (s *Session) AddResource(kind models.ResourceKind, name string) error {
	s.mu.Lock()
	if _, err := s.findLocked(name); err == nil {
		s.mu.Unlock()
		return nil
	}
	r, err := s.scanner.Load(kind, name, scanner.Options{})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.resources = append(s.resources, r)
	s.mu.Unlock()

	s.broadcast(Event{Type: EventResourceAdded, Resource: name})
	return nil
}

// RemoveResource drops a deleted resource from the session and the metadata
// cache.
func (s *Session) RemoveResource(name string) {
	s.mu.Lock()
	kept := s.resources[:0]
	removed := false
	for _, r := range s.resources {
		if r.Name == name {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.resources = kept
	s.mu.Unlock()

	if !removed {
		return
	}
	if s.cache != nil {
		if err := s.cache.Remove(name); err != nil {
			logger.Log.Warnf("metadata cache removal failed: %v", err)
		}
	}
	s.broadcast(Event{Type: EventResourceRemoved, Resource: name})
}

func (s *Session) broadcast(ev Event) {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	if sink != nil {
		sink.Broadcast(ev)
	}
}
