// Package sources manages the registry of marketplace sources a project can
// publish to and pull resources from.
package sources

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
)

// RelativePath is the registry file location under the project root.
const RelativePath = ".blocksmith/sources.json"

// Source is one registered marketplace endpoint.
type Source struct {
	Name        string    `json:"name"`
	Endpoint    string    `json:"endpoint"`
	Description string    `json:"description,omitempty"`
	Default     bool      `json:"default,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Registry manages the per-project source list.
type Registry struct {
	Sources    []Source `json:"sources"`
	configPath string
}

// Open loads the registry for a project, creating an empty one when no
// registry file exists yet.
func Open(projectRoot string) (*Registry, error) {
	r := &Registry{configPath: filepath.Join(projectRoot, RelativePath)}

	data, err := os.ReadFile(r.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to read source registry")
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageFailure, "source registry is not valid JSON")
	}
	return r, nil
}

// Save writes the registry back to disk.
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.configPath), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to create registry directory")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode source registry")
	}
	if err := os.WriteFile(r.configPath, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write source registry")
	}
	return nil
}

// Add registers a new source. Names are unique; the endpoint must be an
// absolute http(s) URL. The first source added becomes the default.
func (r *Registry) Add(name, endpoint, description string) (*Source, error) {
	if name == "" {
		return nil, errors.ValidationError("source name is required")
	}
	if _, ok := r.Get(name); ok {
		return nil, errors.AlreadyExistsError("source " + name)
	}
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.ValidationError("endpoint must be an absolute http(s) URL")
	}

	src := Source{
		Name:        name,
		Endpoint:    endpoint,
		Description: description,
		Default:     len(r.Sources) == 0,
		AddedAt:     time.Now(),
	}
	r.Sources = append(r.Sources, src)
	if err := r.Save(); err != nil {
		return nil, err
	}
	return &src, nil
}

// Remove deletes a source by name. Removing the default promotes the first
// remaining source.
func (r *Registry) Remove(name string) error {
	for i, src := range r.Sources {
		if src.Name != name {
			continue
		}
		wasDefault := src.Default
		r.Sources = append(r.Sources[:i], r.Sources[i+1:]...)
		if wasDefault && len(r.Sources) > 0 {
			r.Sources[0].Default = true
		}
		return r.Save()
	}
	return errors.NotFoundError("source " + name)
}

// Get returns a source by name.
func (r *Registry) Get(name string) (*Source, bool) {
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			return &r.Sources[i], true
		}
	}
	return nil, false
}

// Default returns the default source, or nil when none is registered.
func (r *Registry) Default() *Source {
	for i := range r.Sources {
		if r.Sources[i].Default {
			return &r.Sources[i]
		}
	}
	if len(r.Sources) > 0 {
		return &r.Sources[0]
	}
	return nil
}

// SetDefault marks a source as the default.
func (r *Registry) SetDefault(name string) error {
	found := false
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			found = true
		}
	}
	if !found {
		return errors.NotFoundError("source " + name)
	}
	for i := range r.Sources {
		r.Sources[i].Default = r.Sources[i].Name == name
	}
	return r.Save()
}

// List returns all registered sources.
func (r *Registry) List() []Source {
	return r.Sources
}
