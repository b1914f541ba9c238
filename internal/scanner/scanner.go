// Package scanner discovers blocks and templates on disk and attaches their
// resolved configuration under a configurable strictness policy.
//
// Strict mode is the production-build policy: the first resource that fails
// to resolve aborts the whole scan. Lenient mode is the interactive-dev
// policy: failures degrade to warnings and the resource stays in the list so
// the preview surface can still show it. The scanner never mutates source
// directories.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/schema"
	"github.com/blocksmith-dev/blocksmith/internal/storage"
)

// Options controls one scan pass.
type Options struct {
	// Strict aborts the scan on the first resource failure instead of
	// degrading to a warning.
	Strict bool
	// LoadConfig resolves each resource's configuration file. When false the
	// scan is a bare directory listing (fast path for dev-server startup;
	// configuration resolves lazily on first access).
	LoadConfig bool
	// ValidateSchema runs schema validation on resolved schemas.
	ValidateSchema bool
	// LoadPreview eagerly reads each resource's preview content.
	LoadPreview bool
	// RequirePackageJSON treats missing name+version metadata as a failure.
	RequirePackageJSON bool
	// Names restricts the scan to matching directory names (case-insensitive).
	Names []string
}

// Scanner walks the block and template roots of a project.
type Scanner struct {
	blocksRoot    string
	templatesRoot string
	resolver      ConfigResolver
	registry      *models.TypeRegistry
	previews      *storage.PreviewStore
}

// New creates a scanner over the two resource roots.
func New(blocksRoot, templatesRoot string, resolver ConfigResolver, registry *models.TypeRegistry) *Scanner {
	if resolver == nil {
		resolver = YAMLResolver{}
	}
	if registry == nil {
		registry = models.NewTypeRegistry()
	}
	return &Scanner{
		blocksRoot:    blocksRoot,
		templatesRoot: templatesRoot,
		resolver:      resolver,
		registry:      registry,
		previews:      storage.NewPreviewStore(),
	}
}

// Registry exposes the field type registry used for validation.
func (s *Scanner) Registry() *models.TypeRegistry {
	return s.registry
}

// Root returns the collection root for a resource kind.
func (s *Scanner) Root(kind models.ResourceKind) string {
	if kind == models.KindTemplate {
		return s.templatesRoot
	}
	return s.blocksRoot
}

// Scan discovers all resources in both roots.
func (s *Scanner) Scan(opts Options) ([]*models.Resource, error) {
	var resources []*models.Resource

	for _, kind := range []models.ResourceKind{models.KindBlock, models.KindTemplate} {
		found, err := s.scanRoot(kind, opts)
		if err != nil {
			return nil, err
		}
		resources = append(resources, found...)
	}

	return resources, nil
}

func (s *Scanner) scanRoot(kind models.ResourceKind, opts Options) ([]*models.Resource, error) {
	root := s.Root(kind)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageFailure,
			fmt.Sprintf("failed to list %s root", kind))
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if len(opts.Names) > 0 && !matchesName(entry.Name(), opts.Names) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var resources []*models.Resource
	for _, name := range names {
		resource, err := s.Load(kind, name, opts)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			logger.Log.Warnf("skipping %s %q: %v", kind, name, err)
			continue
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

// Load resolves a single resource by kind and directory name. The watcher
// reuses this as the per-resource loader; it is idempotent and may be invoked
// redundantly for the same resource.
func (s *Scanner) Load(kind models.ResourceKind, name string, opts Options) (*models.Resource, error) {
	dir := filepath.Join(s.Root(kind), name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errors.NotFoundError(fmt.Sprintf("%s %q", kind, name))
	}

	resource := &models.Resource{
		Kind:        kind,
		Name:        name,
		DisplayName: models.DisplayNameFromDir(name),
		Path:        dir,
	}

	meta, err := readPackageMetadata(dir)
	if err != nil {
		if opts.Strict {
			return nil, errors.ConfigError(name, err)
		}
		logger.Log.Warnf("%s %q: %v", kind, name, err)
	}
	if meta != nil {
		resource.Version = meta.Version
		resource.Description = meta.Description
	}
	if opts.RequirePackageJSON && (meta == nil || meta.Name == "" || meta.Version == "") {
		err := errors.NewAppError(errors.ErrCodeMissingPackage,
			fmt.Sprintf("%s %q is missing package metadata (name and version)", kind, name))
		if opts.Strict {
			return nil, err
		}
		logger.Log.Warn(err.Message)
	}

	if opts.LoadConfig {
		if err := s.attachConfig(resource, meta, opts); err != nil {
			return nil, err
		}
	}

	if opts.LoadPreview {
		content, err := s.previews.Read(dir)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			logger.Log.Warnf("%s %q: %v", kind, name, err)
		} else {
			resource.PreviewContent = content
		}
	}

	return resource, nil
}

// attachConfig resolves configuration onto the resource, applying the
// strictness policy for resolution and validation failures.
func (s *Scanner) attachConfig(resource *models.Resource, meta *PackageMetadata, opts Options) error {
	cfg, err := s.resolver.Resolve(resource.Path)
	if err != nil {
		appErr := errors.ConfigError(resource.Name, err)
		if opts.Strict {
			return appErr
		}
		logger.Log.Warn(appErr.Message)
		resource.ConfigLoaded = true
		return nil
	}

	if cfg == nil {
		resource.ConfigLoaded = true
		if meta != nil && len(meta.Legacy) > 0 {
			msg := fmt.Sprintf(
				"%s %q uses legacy embedded metadata in package.json; run `blocksmith migrate` to generate %s",
				resource.Kind, resource.Name, ConfigFileName)
			if opts.Strict {
				return errors.NewAppError(errors.ErrCodeLegacyMetadata, msg)
			}
			logger.Log.Warn(msg)
		}
		return nil
	}

	ApplyConfig(resource, cfg)

	if opts.ValidateSchema && len(cfg.Schema) > 0 {
		if errs := schema.Validate(cfg.Schema, s.registry); len(errs) > 0 {
			for _, e := range errs {
				logger.Log.Warnf("%s %q schema: %s", resource.Kind, resource.Name, e.Error())
			}
			if opts.Strict {
				return errors.SchemaError(resource.Name, len(errs))
			}
		}
	}
	return nil
}

// ApplyConfig copies resolved configuration onto a resource. DisplayName
// priority is configuration name first, then the directory-derived form.
func ApplyConfig(resource *models.Resource, cfg *models.ResourceConfig) {
	resource.HasConfig = true
	resource.ConfigLoaded = true
	resource.Schema = cfg.Schema
	if cfg.Name != "" {
		resource.DisplayName = cfg.Name
	}
	if cfg.Description != "" {
		resource.Description = cfg.Description
	}
	resource.Category = cfg.Category
	resource.Tags = cfg.Tags
	if resource.Kind == models.KindTemplate {
		resource.Pages = cfg.Pages
		resource.LayoutSlots = cfg.LayoutSlots
	}
}

func matchesName(name string, filter []string) bool {
	for _, f := range filter {
		if strings.EqualFold(name, f) {
			return true
		}
	}
	return false
}
