// Package server is the local dev server: a JSON API over the session, a
// websocket event stream for connected editors, and the preview shell page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/blocksmith-dev/blocksmith/internal/backend"
	"github.com/blocksmith-dev/blocksmith/internal/editor"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/service"
)

// DevServer serves the editing API for one session.
type DevServer struct {
	session      *service.Session
	hub          *Hub
	saver        *editor.Controller
	errorHandler *errors.HTTPErrorHandler
	host         string
	port         int
	previewURL   string
	server       *http.Server
}

// NewDevServer creates a dev server over a session. previewURL is where the
// bundler serves the compiled preview assets; empty means no bundler runs.
func NewDevServer(session *service.Session, host string, port int, previewURL string) *DevServer {
	hub := NewHub()
	session.SetEventSink(hub)
	saver := editor.NewController(func(ctx context.Context, resource string, content map[string]interface{}) error {
		return session.WritePreview(resource, content)
	}, editor.DefaultDebounce)
	return &DevServer{
		session:      session,
		hub:          hub,
		saver:        saver,
		errorHandler: errors.NewHTTPErrorHandler(true),
		host:         host,
		port:         port,
		previewURL:   previewURL,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest.
func (s *DevServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/resources", s.withMiddleware(s.handleResources))
	mux.HandleFunc("/resources/", s.withMiddleware(s.handleResourceSubpath))
	mux.HandleFunc("/workspaces", s.withMiddleware(s.handleWorkspaces))
	mux.HandleFunc("/health", s.withMiddleware(s.handleHealth))
	mux.Handle("/events", s.hub)
	mux.HandleFunc("/", s.handleShell)

	return mux
}

// Start begins serving and blocks until the server stops.
func (s *DevServer) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Log.Infof("dev server listening on http://%s:%d", s.host, s.port)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down, flushing pending edits and
// disconnecting all editors.
func (s *DevServer) Stop(ctx context.Context) error {
	if err := s.saver.Flush(ctx); err != nil {
		logger.Log.Warnf("flush on shutdown failed: %v", err)
	}
	s.saver.Close()
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// withMiddleware applies the standard middleware chain to a handler.
func (s *DevServer) withMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return s.loggingMiddleware(
		s.corsMiddleware(
			s.contentTypeMiddleware(
				s.recoveryMiddleware(handler),
			),
		),
	)
}

func (s *DevServer) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		logger.Log.Debugf("[%s] %s - %v", r.Method, r.URL.Path, time.Since(start))
	}
}

func (s *DevServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (s *DevServer) contentTypeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

func (s *DevServer) recoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Errorf("panic in handler: %v", rec)
				s.errorHandler.WriteHTTPError(w, errors.InternalError("Internal server error"))
			}
		}()
		next(w, r)
	}
}

func (s *DevServer) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Errorf("failed to encode response: %v", err)
	}
}

func (s *DevServer) writeError(w http.ResponseWriter, err error) {
	s.errorHandler.WriteHTTPError(w, err)
}

// writeMethodNotAllowed answers 405 with an Allow header in the standard
// error envelope shape.
func (s *DevServer) writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":      "METHOD_NOT_ALLOWED",
			"message":   "Method not allowed",
			"timestamp": time.Now(),
		},
	})
}

// resourceSummary is the list representation of a resource.
type resourceSummary struct {
	Name        string              `json:"name"`
	Kind        models.ResourceKind `json:"kind"`
	DisplayName string              `json:"displayName"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Version     string              `json:"version,omitempty"`
	HasConfig   bool                `json:"hasConfig"`
}

// handleResources handles GET /resources.
func (s *DevServer) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	resources := s.session.Resources()
	if query := r.URL.Query().Get("q"); query != "" {
		haystack := make([]string, len(resources))
		for i, res := range resources {
			haystack[i] = res.Name + " " + res.DisplayName
		}
		matched := make([]*models.Resource, 0, len(resources))
		for _, m := range fuzzy.Find(query, haystack) {
			matched = append(matched, resources[m.Index])
		}
		resources = matched
	}

	summaries := make([]resourceSummary, 0, len(resources))
	for _, res := range resources {
		summaries = append(summaries, resourceSummary{
			Name:        res.Name,
			Kind:        res.Kind,
			DisplayName: res.DisplayName,
			Description: res.Description,
			Category:    res.Category,
			Tags:        res.Tags,
			Version:     res.Version,
			HasConfig:   res.HasConfig,
		})
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

// handleResourceSubpath dispatches /resources/{name}/{action}.
func (s *DevServer) handleResourceSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/resources/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		s.writeError(w, errors.ValidationError("Resource name is required"))
		return
	}
	name := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "config":
		s.handleConfig(w, r, name)
	case "preview":
		s.handlePreview(w, r, name)
	case "fields":
		s.handleFields(w, r, name)
	case "published-version":
		s.handlePublishedVersion(w, r, name)
	case "publish":
		s.handlePublish(w, r, name)
	default:
		s.writeError(w, errors.NotFoundError(fmt.Sprintf("route %q", r.URL.Path)))
	}
}

// handleConfig handles GET /resources/{name}/config: the resolved schema
// merged with the current preview content, ready for an editor to render.
func (s *DevServer) handleConfig(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	state, err := s.session.EditableState(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	payload := map[string]interface{}{
		"name":        state.Resource.Name,
		"kind":        state.Resource.Kind,
		"displayName": state.Resource.DisplayName,
		"description": state.Resource.Description,
		"category":    state.Resource.Category,
		"tags":        state.Resource.Tags,
		"version":     state.Resource.Version,
		"schema":      state.Schema,
		"content":     state.Content,
	}
	if state.Resource.Kind == models.KindTemplate {
		payload["pages"] = state.Resource.Pages
		payload["layoutSlots"] = state.Resource.LayoutSlots
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handlePreview handles GET and POST /resources/{name}/preview.
func (s *DevServer) handlePreview(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		content, err := s.session.ReadPreview(name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, content)

	case http.MethodPost:
		var content map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
			s.writeError(w, errors.ValidationError("Request body must be a JSON object"))
			return
		}
		if err := s.session.WritePreview(name, content); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	default:
		s.writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleFields handles POST /resources/{name}/fields: partial field edits
// from an editing surface. Edits are debounced and merged into the full
// preview document before anything is written, so fields the editor never
// rendered are not lost.
func (s *DevServer) handleFields(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.writeError(w, errors.ValidationError("Request body must be a JSON object of field values"))
		return
	}

	if s.saver.Resource() != name {
		// The baseline must be the complete merged document, not the raw
		// preview: a freshly scaffolded resource has an empty preview file,
		// and an empty baseline suppresses every save.
		state, err := s.session.EditableState(name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.saver.SwitchResource(name, state.Content)
	}
	for field, value := range fields {
		s.saver.Update(field, value)
	}
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true})
}

// handlePublishedVersion handles GET /resources/{name}/published-version.
// Backend trouble degrades to an unpublished answer so the editor badge
// renders with or without connectivity.
func (s *DevServer) handlePublishedVersion(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if _, err := s.session.Get(name); err != nil {
		s.writeError(w, err)
		return
	}

	unpublished := map[string]interface{}{"version": nil, "published": false}
	backendClient := s.session.Backend()
	if backendClient == nil {
		s.writeJSON(w, http.StatusOK, unpublished)
		return
	}

	v, err := backendClient.GetPublishedVersion(r.Context(), name, r.URL.Query().Get("workspaceId"))
	if err != nil || v == nil {
		if err != nil {
			logger.Log.Debugf("published-version lookup for %q failed: %v", name, err)
		}
		s.writeJSON(w, http.StatusOK, unpublished)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   v.Version,
		"published": v.Published,
	})
}

// publishRequest is the body of POST /resources/{name}/publish.
type publishRequest struct {
	Target      string `json:"target"`
	WorkspaceID string `json:"workspaceId"`
	VersionBump string `json:"versionBump"`
}

func (p publishRequest) validate(name string) error {
	if p.Target == "" {
		return errors.ValidationError("publish target is required")
	}
	if p.Target != name {
		return errors.ValidationError(fmt.Sprintf("publish target %q does not match resource %q", p.Target, name))
	}
	switch p.VersionBump {
	case "", "patch", "minor", "major":
		return nil
	default:
		return errors.ValidationError(fmt.Sprintf("versionBump must be patch, minor or major, got %q", p.VersionBump))
	}
}

// handlePublish handles POST /resources/{name}/publish.
func (s *DevServer) handlePublish(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.ValidationError("Request body must be a JSON publish request"))
		return
	}
	if err := req.validate(name); err != nil {
		s.writeError(w, err)
		return
	}

	backendClient := s.session.Backend()
	if backendClient == nil {
		s.writeError(w, errors.UnauthorizedError("no backend configured; run `blocksmith configure`"))
		return
	}

	res, err := s.session.Resolve(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	input := backend.InputFromResource(res)
	input.WorkspaceID = req.WorkspaceID
	input.VersionBump = req.VersionBump

	result, err := backendClient.Publish(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("published %s@%s", name, result.Version),
		"version": result.Version,
	})
}

// handleWorkspaces handles GET /workspaces.
func (s *DevServer) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	backendClient := s.session.Backend()
	if backendClient == nil {
		s.writeError(w, errors.UnauthorizedError("no API token configured; set BLOCKSMITH_API_TOKEN"))
		return
	}

	workspaces, err := backendClient.Workspaces(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, workspaces)
}

// handleHealth handles GET /health.
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"resources": len(s.session.Resources()),
		"editors":   s.hub.ClientCount(),
		"timestamp": time.Now(),
	})
}
