package service

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/blocksmith-dev/blocksmith/internal/cache"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/schema"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Broadcast(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) ofType(t string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newFixture(t *testing.T) (string, *Session, *captureSink) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "blocks", "hero-banner"), map[string]string{
		"package.json": `{"name": "hero-banner", "version": "1.0.0"}`,
		"blocksmith.config.yaml": `name: Hero Banner
category: marketing
schema:
  heading:
    type: text
    default: Default Heading
  badge:
    type: text
    default: About Us
`,
		"preview.json": `{"heading": "Edited Heading"}`,
	})
	writeFiles(t, filepath.Join(root, "blocks", "footer"), map[string]string{
		"package.json": `{"name": "footer", "version": "0.2.0"}`,
	})

	sc := scanner.New(filepath.Join(root, "blocks"), filepath.Join(root, "templates"), nil, nil)
	session := NewSession(sc, cache.Load(root), nil)
	sink := &captureSink{}
	session.SetEventSink(sink)
	if err := session.Start(); err != nil {
		t.Fatal(err)
	}
	return root, session, sink
}

func TestStartIsFastPath(t *testing.T) {
	_, session, _ := newFixture(t)

	for _, r := range session.Resources() {
		if r.ConfigLoaded {
			t.Errorf("%s: configuration must not resolve at startup", r.Name)
		}
	}
}

func TestResolveIsLazyAndIdempotent(t *testing.T) {
	_, session, _ := newFixture(t)

	r, err := session.Resolve("hero-banner")
	if err != nil {
		t.Fatal(err)
	}
	if !r.HasConfig || r.DisplayName != "Hero Banner" {
		t.Errorf("configuration not applied: %+v", r)
	}

	again, err := session.Resolve("hero-banner")
	if err != nil {
		t.Fatal(err)
	}
	if again != r {
		t.Error("second resolve must return the already resolved resource")
	}
}

func TestResourcesAnnotatedFromCache(t *testing.T) {
	root, session, _ := newFixture(t)

	// Resolving populates the cache; a fresh session then sees the cached
	// metadata before any configuration is resolved.
	if _, err := session.Resolve("hero-banner"); err != nil {
		t.Fatal(err)
	}

	sc := scanner.New(filepath.Join(root, "blocks"), filepath.Join(root, "templates"), nil, nil)
	fresh := NewSession(sc, cache.Load(root), nil)
	if err := fresh.Start(); err != nil {
		t.Fatal(err)
	}

	for _, r := range fresh.Resources() {
		if r.Name != "hero-banner" {
			continue
		}
		if r.ConfigLoaded {
			t.Fatal("annotation must not count as resolution")
		}
		if r.DisplayName != "Hero Banner" || r.Category != "marketing" {
			t.Errorf("cache annotation missing: %+v", r)
		}
	}
}

func TestEditableStateMergesDefaults(t *testing.T) {
	_, session, _ := newFixture(t)

	state, err := session.EditableState("hero-banner")
	if err != nil {
		t.Fatal(err)
	}
	if state.Content["heading"] != "Edited Heading" {
		t.Errorf("preview value must win: %v", state.Content["heading"])
	}
	if state.Content["badge"] != "About Us" {
		t.Errorf("absent field must fall back to the schema default: %v", state.Content["badge"])
	}
}

func TestWritePreviewBroadcasts(t *testing.T) {
	_, session, sink := newFixture(t)

	content := map[string]interface{}{"heading": "From Editor"}
	if err := session.WritePreview("hero-banner", content); err != nil {
		t.Fatal(err)
	}

	got, err := session.ReadPreview("hero-banner")
	if err != nil {
		t.Fatal(err)
	}
	if got["heading"] != "From Editor" {
		t.Errorf("preview round trip failed: %v", got)
	}

	events := sink.ofType(EventContentUpdated)
	if len(events) != 1 || events[0].Resource != "hero-banner" {
		t.Fatalf("expected one content-updated event, got %v", events)
	}
}

func TestReloadConfigBroadcastsValidation(t *testing.T) {
	root, session, sink := newFixture(t)

	// Break the schema on disk, then reload as the watcher would.
	badConfig := `schema:
  heading:
    type: number
    default: not-a-number
`
	path := filepath.Join(root, "blocks", "hero-banner", "blocksmith.config.yaml")
	if err := os.WriteFile(path, []byte(badConfig), 0644); err != nil {
		t.Fatal(err)
	}

	if err := session.ReloadConfig(models.KindBlock, "hero-banner"); err != nil {
		t.Fatal(err)
	}

	validations := sink.ofType(EventValidationErrors)
	if len(validations) != 1 {
		t.Fatalf("expected a validation-errors event, got %d", len(validations))
	}
	findings, ok := validations[0].Payload.([]schema.FieldError)
	if !ok || len(findings) == 0 {
		t.Fatalf("expected findings in the payload, got %T", validations[0].Payload)
	}
	if len(sink.ofType(EventConfigUpdated)) != 1 {
		t.Error("expected a config-updated event")
	}
}

func TestReloadConfigSurvivesBrokenFile(t *testing.T) {
	root, session, _ := newFixture(t)

	path := filepath.Join(root, "blocks", "hero-banner", "blocksmith.config.yaml")
	if err := os.WriteFile(path, []byte("schema: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := session.ReloadConfig(models.KindBlock, "hero-banner"); err != nil {
		t.Fatalf("a half-saved file must not kill the session: %v", err)
	}
	if _, err := session.Get("hero-banner"); err != nil {
		t.Error("resource must stay listed")
	}
}

func TestAddAndRemoveResource(t *testing.T) {
	root, session, sink := newFixture(t)

	writeFiles(t, filepath.Join(root, "blocks", "pricing"), map[string]string{
		"package.json": `{"name": "pricing", "version": "0.1.0"}`,
	})
	if err := session.AddResource(models.KindBlock, "pricing"); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Get("pricing"); err != nil {
		t.Fatal("added resource must be listed")
	}
	// Idempotent.
	if err := session.AddResource(models.KindBlock, "pricing"); err != nil {
		t.Fatal(err)
	}
	if len(sink.ofType(EventResourceAdded)) != 1 {
		t.Error("re-adding must not broadcast again")
	}

	session.RemoveResource("pricing")
	if _, err := session.Get("pricing"); err == nil {
		t.Error("removed resource must not be listed")
	}
	if len(sink.ofType(EventResourceRemoved)) != 1 {
		t.Error("expected a resource-removed event")
	}
}

func TestCachePersistsAcrossSessions(t *testing.T) {
	root, session, _ := newFixture(t)

	if _, err := session.Resolve("hero-banner"); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(root, cache.RelativePath))
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("cache file not valid JSON: %v", err)
	}
}
