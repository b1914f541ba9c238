package scanner

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func writeResource(t *testing.T, root, kind, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, kind, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestScanner(root string) *Scanner {
	return New(filepath.Join(root, "blocks"), filepath.Join(root, "templates"), nil, nil)
}

const heroConfig = `name: Hero Banner
description: Large hero section
category: marketing
tags: [hero, landing]
schema:
  badge:
    type: text
    default: About Us
  heading:
    type: text
    default: Default Heading
`

const heroPackage = `{"name": "hero-banner", "version": "1.2.0", "description": "pkg description"}`

func TestScanDiscoversBothKinds(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "hero-banner", map[string]string{
		"package.json":          heroPackage,
		"blocksmith.config.yaml": heroConfig,
	})
	writeResource(t, root, "templates", "landing-page", map[string]string{
		"package.json": `{"name": "landing-page", "version": "0.1.0"}`,
	})

	resources, err := newTestScanner(root).Scan(Options{LoadConfig: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].Kind != models.KindBlock || resources[1].Kind != models.KindTemplate {
		t.Errorf("unexpected kinds: %s, %s", resources[0].Kind, resources[1].Kind)
	}
}

func TestScanResolvesConfigMetadata(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "hero-banner", map[string]string{
		"package.json":          heroPackage,
		"blocksmith.config.yaml": heroConfig,
	})

	resources, err := newTestScanner(root).Scan(Options{LoadConfig: true, ValidateSchema: true})
	if err != nil {
		t.Fatal(err)
	}

	hero := resources[0]
	if hero.DisplayName != "Hero Banner" {
		t.Errorf("config name must win, got %q", hero.DisplayName)
	}
	if hero.Category != "marketing" || hero.Version != "1.2.0" {
		t.Errorf("unexpected metadata: %+v", hero)
	}
	if !hero.HasConfig || hero.Schema == nil {
		t.Error("schema not attached")
	}
	if hero.Schema["badge"].DefaultValue != "About Us" {
		t.Errorf("schema default lost: %v", hero.Schema["badge"].DefaultValue)
	}
}

func TestScanWithoutConfigDerivesDisplayName(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "pricing-table", map[string]string{
		"package.json": `{"name": "pricing-table", "version": "0.1.0", "description": "fallback"}`,
	})

	resources, err := newTestScanner(root).Scan(Options{LoadConfig: true})
	if err != nil {
		t.Fatal(err)
	}

	r := resources[0]
	if r.DisplayName != "Pricing Table" {
		t.Errorf("expected derived display name, got %q", r.DisplayName)
	}
	if r.Description != "fallback" {
		t.Errorf("package description must be the fallback, got %q", r.Description)
	}
	if r.HasConfig {
		t.Error("resource without config file must not report hasConfig")
	}
}

func TestScanStrictAbortsOnBrokenConfig(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "broken", map[string]string{
		"package.json":          `{"name": "broken", "version": "0.0.1"}`,
		"blocksmith.config.yaml": "schema: [not: a: mapping",
	})

	if _, err := newTestScanner(root).Scan(Options{LoadConfig: true, Strict: true}); err == nil {
		t.Fatal("strict scan must abort on unparseable config")
	}
}

func TestScanLenientIncludesBrokenResource(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "broken", map[string]string{
		"package.json":          `{"name": "broken", "version": "0.0.1"}`,
		"blocksmith.config.yaml": "schema: [not: a: mapping",
	})
	writeResource(t, root, "blocks", "fine", map[string]string{
		"package.json": `{"name": "fine", "version": "0.0.1"}`,
	})

	resources, err := newTestScanner(root).Scan(Options{LoadConfig: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("lenient scan must include the broken resource, got %d resources", len(resources))
	}
	for _, r := range resources {
		if r.Name == "broken" && r.Schema != nil {
			t.Error("broken resource must not carry a schema")
		}
	}
}

func TestScanStrictValidationFailure(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "badschema", map[string]string{
		"package.json": `{"name": "badschema", "version": "0.0.1"}`,
		"blocksmith.config.yaml": `schema:
  count:
    type: number
    default: lots
`,
	})

	s := newTestScanner(root)
	if _, err := s.Scan(Options{LoadConfig: true, ValidateSchema: true, Strict: true}); err == nil {
		t.Fatal("strict scan must fail schema validation")
	}
	resources, err := s.Scan(Options{LoadConfig: true, ValidateSchema: true})
	if err != nil || len(resources) != 1 {
		t.Fatalf("lenient scan must keep the resource: %v, %d", err, len(resources))
	}
}

func TestScanRequirePackageJSON(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "bare", map[string]string{})

	s := newTestScanner(root)
	if _, err := s.Scan(Options{Strict: true, RequirePackageJSON: true}); err == nil {
		t.Fatal("strict scan must fail without package metadata")
	}
	if resources, err := s.Scan(Options{RequirePackageJSON: true}); err != nil || len(resources) != 1 {
		t.Fatalf("lenient scan must keep the resource: %v", err)
	}
}

func TestScanNameFilterIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "hero-banner", map[string]string{"package.json": heroPackage})
	writeResource(t, root, "blocks", "footer", map[string]string{"package.json": `{"name":"footer","version":"1.0.0"}`})

	resources, err := newTestScanner(root).Scan(Options{Names: []string{"Hero-Banner"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 || resources[0].Name != "hero-banner" {
		t.Errorf("name filter failed: %v", resources)
	}
}

func TestScanLegacyMetadataStrict(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "old-timer", map[string]string{
		"package.json": `{"name": "old-timer", "version": "1.0.0", "blocksmith": {"schema": {}}}`,
	})

	s := newTestScanner(root)
	if _, err := s.Scan(Options{LoadConfig: true, Strict: true}); err == nil {
		t.Fatal("strict scan must reject legacy embedded metadata")
	}
	if resources, err := s.Scan(Options{LoadConfig: true}); err != nil || len(resources) != 1 {
		t.Fatalf("lenient scan must keep legacy resource: %v", err)
	}
}

func TestScanLoadPreview(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "hero-banner", map[string]string{
		"package.json": heroPackage,
		"preview.json": `{"heading": "Only heading"}`,
	})

	resources, err := newTestScanner(root).Scan(Options{LoadPreview: true})
	if err != nil {
		t.Fatal(err)
	}
	if resources[0].PreviewContent["heading"] != "Only heading" {
		t.Errorf("preview not loaded: %v", resources[0].PreviewContent)
	}
}

func TestScanSkipsFilesAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, "blocks", "real", map[string]string{"package.json": `{"name":"real","version":"1.0.0"}`})
	if err := os.WriteFile(filepath.Join(root, "blocks", "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "blocks", ".hidden"), 0755); err != nil {
		t.Fatal(err)
	}

	resources, err := newTestScanner(root).Scan(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 {
		t.Errorf("expected only the real resource, got %d", len(resources))
	}
}

func TestLoadUnknownResource(t *testing.T) {
	if _, err := newTestScanner(t.TempDir()).Load(models.KindBlock, "ghost", Options{}); err == nil {
		t.Fatal("expected not-found error")
	}
}
