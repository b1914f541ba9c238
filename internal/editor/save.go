// Package editor tracks in-flight preview edits and reconciles them against
// the last fully read document before anything is written back.
//
// The controller exists to make partial editor payloads safe: an editing
// surface typically only knows about the fields it rendered, so writing its
// state verbatim would truncate every field it never saw. Outgoing saves are
// therefore always baseline merged with the working set, working values
// winning, and a save is suppressed entirely while no baseline document has
// been captured.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
)

// DefaultDebounce is the quiet period after the last edit before a save
// fires.
const DefaultDebounce = 400 * time.Millisecond

// SaveFunc persists a full preview document for a resource.
type SaveFunc func(ctx context.Context, resource string, content map[string]interface{}) error

// Controller debounces field edits and produces full-document saves.
//
// A nil baseline means the full document was never read and is distinct from
// an empty baseline map, which means the document was read and is empty. In
// either case there is nothing trustworthy to merge into, so pending edits
// are held until a baseline arrives.
type Controller struct {
	mu       sync.Mutex
	save     SaveFunc
	debounce time.Duration

	resource string
	baseline map[string]interface{}
	working  map[string]interface{}
	dirty    bool

	timer  *time.Timer
	cancel context.CancelFunc
}

// NewController creates a controller around a persistence function. A
// non-positive debounce falls back to DefaultDebounce.
func NewController(save SaveFunc, debounce time.Duration) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		save:     save,
		debounce: debounce,
		working:  make(map[string]interface{}),
	}
}

// Open points the controller at a resource and records the full document
// read for it. Any state for a previously open resource is discarded and its
// pending save cancelled.
func (c *Controller) Open(resource string, baseline map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.resource = resource
	c.baseline = cloneDocument(baseline)
}

// SetBaseline refreshes the known full document for the open resource,
// typically after an external change reloaded it. Working edits survive the
// refresh; if edits were held back for lack of a baseline, the debounce is
// re-armed so they flush.
func (c *Controller) SetBaseline(content map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseline = cloneDocument(content)
	if c.dirty && c.baseline != nil {
		c.armLocked()
	}
}

// Update stages a single field edit and re-arms the debounce timer. An
// explicit nil value is a real edit and is written out as null.
func (c *Controller) Update(field string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.working[field] = value
	c.dirty = true
	c.armLocked()
}

// SwitchResource abandons the current resource: the pending debounce and any
// in-flight save are cancelled, held edits are dropped, and the controller
// opens the new resource with its baseline.
func (c *Controller) SwitchResource(resource string, baseline map[string]interface{}) {
	c.Open(resource, baseline)
}

// Flush persists pending edits immediately instead of waiting for the
// debounce. It is a no-op when nothing is dirty and still suppresses while
// no baseline document has been captured.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	resource, content, ok := c.takeLocked()
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.persist(ctx, resource, content)
}

// Close cancels all pending and in-flight work without saving.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Resource returns the name of the currently open resource.
func (c *Controller) Resource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resource
}

// Dirty reports whether edits are staged but not yet persisted.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// armLocked (re)starts the debounce timer. Caller holds c.mu.
func (c *Controller) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

func (c *Controller) fire() {
	c.mu.Lock()
	c.timer = nil
	resource, content, ok := c.takeLocked()
	if !ok {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.persist(ctx, resource, content); err != nil && ctx.Err() == nil {
		logger.Log.Errorf("save for %q failed: %v", resource, err)
	}
}

// takeLocked composes the outgoing document and clears the dirty state, or
// reports that the save must be suppressed. Caller holds c.mu.
func (c *Controller) takeLocked() (string, map[string]interface{}, bool) {
	if !c.dirty || c.resource == "" {
		return "", nil, false
	}
	if len(c.baseline) == 0 {
		// No trustworthy full document to merge into; writing only the
		// working fields would truncate everything the editor never saw.
		// Edits stay staged until SetBaseline delivers one.
		logger.Log.Debugf("holding %d edit(s) for %q until a baseline document is read",
			len(c.working), c.resource)
		return "", nil, false
	}

	content := cloneDocument(c.baseline)
	for field, value := range c.working {
		content[field] = value
	}

	c.baseline = content
	c.working = make(map[string]interface{})
	c.dirty = false
	return c.resource, cloneDocument(content), true
}

func (c *Controller) persist(ctx context.Context, resource string, content map[string]interface{}) error {
	if c.save == nil {
		return nil
	}
	return c.save(ctx, resource, content)
}

// resetLocked cancels timers and in-flight saves and clears all per-resource
// state. Caller holds c.mu.
func (c *Controller) resetLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.resource = ""
	c.baseline = nil
	c.working = make(map[string]interface{})
	c.dirty = false
}

func cloneDocument(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return nil
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
