package editor

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	saves []savedDoc
}

type savedDoc struct {
	resource string
	content  map[string]interface{}
}

func (r *recordingSink) save(_ context.Context, resource string, content map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, savedDoc{resource: resource, content: content})
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingSink) last(t *testing.T) savedDoc {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		t.Fatal("no saves recorded")
	}
	return r.saves[len(r.saves)-1]
}

func TestFlushMergesBaselineWithEdits(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{
		"heading": "Old Heading",
		"badge":   "About Us",
		"items":   []interface{}{"a", "b"},
	})

	c.Update("heading", "New Heading")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := sink.last(t)
	if got.resource != "hero-banner" {
		t.Errorf("resource = %q", got.resource)
	}
	if got.content["heading"] != "New Heading" {
		t.Errorf("edited field must win: %v", got.content["heading"])
	}
	if got.content["badge"] != "About Us" {
		t.Error("untouched baseline field was dropped")
	}
	if _, ok := got.content["items"]; !ok {
		t.Error("baseline field the editor never rendered was dropped")
	}
}

func TestExplicitNullIsSaved(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{"heading": "Old"})

	c.Update("heading", nil)
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := sink.last(t)
	v, present := got.content["heading"]
	if !present || v != nil {
		t.Errorf("explicit null must survive the merge, got %v (present=%v)", v, present)
	}
}

func TestSaveSuppressedWithoutBaseline(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", nil)

	c.Update("heading", "New")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.count() != 0 {
		t.Fatal("save must be suppressed while no document was read")
	}
	if !c.Dirty() {
		t.Error("edits must stay staged while suppressed")
	}

	c.SetBaseline(map[string]interface{}{"heading": "Old", "badge": "kept"})
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := sink.last(t)
	if got.content["heading"] != "New" || got.content["badge"] != "kept" {
		t.Errorf("held edits must flush over the new baseline: %v", got.content)
	}
}

func TestSaveSuppressedOnEmptyBaseline(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{})

	c.Update("heading", "New")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.count() != 0 {
		t.Fatal("an empty baseline must not produce a write")
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, 30*time.Millisecond)
	defer c.Close()
	c.Open("hero-banner", map[string]interface{}{"heading": "Old"})

	c.Update("heading", "One")
	c.Update("heading", "Two")
	c.Update("badge", "New Badge")

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("expected one coalesced save, got %d", sink.count())
	}
	got := sink.last(t)
	if got.content["heading"] != "Two" || got.content["badge"] != "New Badge" {
		t.Errorf("coalesced save content: %v", got.content)
	}
}

func TestSwitchResourceDropsPendingEdits(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{"heading": "Old"})
	c.Update("heading", "Never saved")

	c.SwitchResource("footer", map[string]interface{}{"links": []interface{}{}})
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.count() != 0 {
		t.Fatal("edits for the abandoned resource must not be written")
	}

	c.Update("links", []interface{}{"home"})
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := sink.last(t)
	if got.resource != "footer" {
		t.Errorf("save went to %q", got.resource)
	}
	if _, ok := got.content["heading"]; ok {
		t.Error("state leaked across the resource switch")
	}
}

func TestConsecutiveFlushesChainBaseline(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{"a": "1", "b": "2"})

	c.Update("a", "edited")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Update("b", "also edited")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := sink.last(t)
	if got.content["a"] != "edited" || got.content["b"] != "also edited" {
		t.Errorf("second save must build on the first: %v", got.content)
	}
}

func TestFlushWithoutEditsIsNoop(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink.save, time.Hour)
	c.Open("hero-banner", map[string]interface{}{"a": "1"})

	if err := c.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.count() != 0 {
		t.Error("clean controller must not write")
	}
}
