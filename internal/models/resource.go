package models

import (
	"strings"
	"unicode"
)

// ResourceKind separates the two resource collections.
type ResourceKind string

const (
	KindBlock    ResourceKind = "block"
	KindTemplate ResourceKind = "template"
)

// TemplatePage is one page of a template resource.
type TemplatePage struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// ResourceConfig is the structured result of resolving a resource's
// declarative configuration file. A nil ResourceConfig means the resource has
// no configuration at all.
type ResourceConfig struct {
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Category    string            `yaml:"category,omitempty"`
	Tags        []string          `yaml:"tags,omitempty"`
	Schema      FieldSchema       `yaml:"schema,omitempty"`
	Pages       []TemplatePage    `yaml:"pages,omitempty"`
	LayoutSlots map[string]string `yaml:"layoutSlots,omitempty"`
}

// Resource is one block or template discovered on disk.
//
// PreviewContent is only populated by an eager scan; request paths re-read it
// from disk every time so edits made by other processes are never shadowed.
type Resource struct {
	Kind        ResourceKind `json:"kind"`
	Name        string       `json:"name"`
	DisplayName string       `json:"displayName"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Version     string       `json:"version,omitempty"`

	Schema       FieldSchema `json:"schema,omitempty"`
	HasConfig    bool        `json:"hasConfig"`
	ConfigLoaded bool        `json:"-"`

	Path           string                 `json:"-"`
	PreviewContent map[string]interface{} `json:"previewContent,omitempty"`

	// Template-only.
	Pages       []TemplatePage    `json:"pages,omitempty"`
	LayoutSlots map[string]string `json:"layoutSlots,omitempty"`
}

// DisplayNameFromDir converts a directory name like "hero-banner" into a
// display form like "Hero Banner". Used when configuration supplies no name.
func DisplayNameFromDir(dir string) string {
	parts := strings.FieldsFunc(dir, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
