package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/service"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type eventRecorder struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *eventRecorder) Broadcast(ev service.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) waitFor(t *testing.T, eventType, resource string) service.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev.Type == eventType && ev.Resource == resource {
				r.mu.Unlock()
				return ev
			}
		}
		r.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no %s event for %q", eventType, resource)
	return service.Event{}
}

func startFixture(t *testing.T) (string, *eventRecorder) {
	t.Helper()
	root := t.TempDir()
	heroDir := filepath.Join(root, "blocks", "hero-banner")
	if err := os.MkdirAll(heroDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "templates"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"package.json":          `{"name": "hero-banner", "version": "1.0.0"}`,
		"blocksmith.config.yaml": "name: Hero Banner\nschema:\n  heading:\n    type: text\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(heroDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	blocksRoot := filepath.Join(root, "blocks")
	templatesRoot := filepath.Join(root, "templates")
	sc := scanner.New(blocksRoot, templatesRoot, nil, nil)
	session := service.NewSession(sc, nil, nil)
	recorder := &eventRecorder{}
	session.SetEventSink(recorder)
	if err := session.Start(); err != nil {
		t.Fatal(err)
	}

	w, err := New(session, blocksRoot, templatesRoot)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx) }()

	// Let the watcher register its directories before the test mutates them.
	time.Sleep(100 * time.Millisecond)
	return root, recorder
}

func TestConfigEditTriggersReload(t *testing.T) {
	root, recorder := startFixture(t)

	path := filepath.Join(root, "blocks", "hero-banner", "blocksmith.config.yaml")
	updated := "name: Hero Banner v2\nschema:\n  heading:\n    type: text\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	recorder.waitFor(t, service.EventConfigUpdated, "hero-banner")
}

func TestNewResourceDirectoryIsRegistered(t *testing.T) {
	root, recorder := startFixture(t)

	dir := filepath.Join(root, "blocks", "pricing")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// The directory watch is added asynchronously when the create event
	// arrives; give it a moment before dropping the marker file in.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "package.json"),
		[]byte(`{"name": "pricing", "version": "0.1.0"}`), 0644); err != nil {
		t.Fatal(err)
	}

	recorder.waitFor(t, service.EventResourceAdded, "pricing")
}

func TestRemovedResourceIsDropped(t *testing.T) {
	root, recorder := startFixture(t)

	if err := os.RemoveAll(filepath.Join(root, "blocks", "hero-banner")); err != nil {
		t.Fatal(err)
	}

	recorder.waitFor(t, service.EventResourceRemoved, "hero-banner")
}
