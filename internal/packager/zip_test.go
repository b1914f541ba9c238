package packager

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

func buildResourceDir(t *testing.T) *models.Resource {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"package.json":               `{"name": "hero-banner", "version": "1.2.0"}`,
		"blocksmith.config.yaml":      "name: Hero Banner\n",
		"preview.json":               `{}`,
		"src/index.js":               "export default {}\n",
		"node_modules/dep/index.js":  "skip me\n",
		"dist/bundle.js":             "skip me\n",
		".env":                       "SECRET=1\n",
		".blocksmith/cache/x.json":   "{}",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &models.Resource{
		Kind:    models.KindBlock,
		Name:    "hero-banner",
		Version: "1.2.0",
		Path:    dir,
	}
}

func archiveNames(t *testing.T, path string) map[string]bool {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	return names
}

func TestArchiveContents(t *testing.T) {
	res := buildResourceDir(t)
	out := t.TempDir()

	path, err := Archive(res, out)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "block-hero-banner-1.2.0.zip" {
		t.Errorf("unexpected archive name %q", filepath.Base(path))
	}

	names := archiveNames(t, path)
	for _, want := range []string{"package.json", "blocksmith.config.yaml", "preview.json", "src/index.js"} {
		if !names[want] {
			t.Errorf("archive missing %s", want)
		}
	}
	for name := range names {
		switch {
		case name == ".env":
			t.Error("hidden files must not be packaged")
		case strings.HasPrefix(name, "node_modules/"), strings.HasPrefix(name, "dist/"):
			t.Errorf("build artifact %s must not be packaged", name)
		}
	}
}

func TestArchiveDefaultsVersion(t *testing.T) {
	res := buildResourceDir(t)
	res.Version = ""

	path, err := Archive(res, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "block-hero-banner-0.0.0.zip" {
		t.Errorf("unexpected archive name %q", filepath.Base(path))
	}
}
