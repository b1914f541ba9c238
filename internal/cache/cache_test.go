package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

func TestLoadMissingFileYieldsEmptyCache(t *testing.T) {
	c := Load(t.TempDir())
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestLoadCorruptFileYieldsEmptyCache(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, RelativePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	c := Load(root)
	if c.Len() != 0 {
		t.Errorf("corrupt cache must degrade to empty, got %d entries", c.Len())
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	root := t.TempDir()
	c := Load(root)

	cfg := &models.ResourceConfig{
		Name:        "Hero Banner",
		Category:    "marketing",
		Tags:        []string{"hero", "landing"},
		Description: "Large hero section",
	}
	if err := c.Update("hero-banner", models.KindBlock, cfg, "1.2.0"); err != nil {
		t.Fatal(err)
	}

	reloaded := Load(root)
	entry, ok := reloaded.Get("hero-banner")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if entry.DisplayName != "Hero Banner" || entry.Category != "marketing" || entry.Version != "1.2.0" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Kind != models.KindBlock {
		t.Errorf("expected block kind, got %s", entry.Kind)
	}
}

func TestUpdateWithoutConfigFallsBackToDirName(t *testing.T) {
	c := Load(t.TempDir())

	if err := c.Update("pricing-table", models.KindBlock, nil, "0.1.0"); err != nil {
		t.Fatal(err)
	}

	entry, _ := c.Get("pricing-table")
	if entry.DisplayName != "Pricing Table" {
		t.Errorf("expected derived display name, got %q", entry.DisplayName)
	}
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	c := Load(root)

	if err := c.Update("hero", models.KindBlock, nil, "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("hero"); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("never-existed"); err != nil {
		t.Errorf("removing unknown entry must be a no-op, got %v", err)
	}

	if _, ok := Load(root).Get("hero"); ok {
		t.Error("entry still present after remove")
	}
}
