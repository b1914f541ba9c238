// Package backend talks GraphQL to the blocksmith publishing backend on
// behalf of the CLI and the dev server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
)

// publishTimeout bounds a publish round trip. Publishes carry full resource
// payloads and can legitimately take a while on slow links.
const publishTimeout = 3 * time.Minute

const defaultTimeout = 30 * time.Second

// versionCacheSize bounds the published-version memo.
const versionCacheSize = 128

// Client is a GraphQL client for the publishing backend.
type Client struct {
	url       string
	token     string
	workspace string
	http      *http.Client

	versions *lru.Cache[string, *PublishedVersion]
}

// Workspace is a workspace the authenticated user belongs to.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// PublishedVersion describes the backend's view of a resource.
type PublishedVersion struct {
	Version   string    `json:"version"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublishInput is the payload for publishing one resource.
type PublishInput struct {
	Name        string                 `json:"name"`
	Kind        string                 `json:"kind"`
	Version     string                 `json:"version"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
	PackageURL  string                 `json:"packageUrl,omitempty"`
	WorkspaceID string                 `json:"workspaceId,omitempty"`
	VersionBump string                 `json:"versionBump,omitempty"`
}

// InputFromResource builds the publish payload for a resolved resource.
func InputFromResource(res *models.Resource) PublishInput {
	schema := make(map[string]interface{}, len(res.Schema))
	for name, def := range res.Schema {
		schema[name] = def
	}
	return PublishInput{
		Name:        res.Name,
		Kind:        string(res.Kind),
		Version:     res.Version,
		DisplayName: res.DisplayName,
		Description: res.Description,
		Category:    res.Category,
		Tags:        res.Tags,
		Schema:      schema,
	}
}

// New creates a client against the given GraphQL endpoint.
func New(url, token, workspace string) *Client {
	versions, _ := lru.New[string, *PublishedVersion](versionCacheSize)
	return &Client{
		url:       url,
		token:     token,
		workspace: workspace,
		// Timeouts are enforced per call through the context so publishes
		// can run longer than queries.
		http:     &http.Client{},
		versions: versions,
	}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code  string                 `json:"code"`
		Usage map[string]interface{} `json:"usage"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do executes one GraphQL operation against the client's configured
// workspace and decodes data into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	return c.doIn(ctx, c.workspace, query, variables, out)
}

// doIn is do with a per-call workspace override.
func (c *Client) doIn(ctx context.Context, workspace, query string, variables map[string]interface{}, out interface{}) error {
	if c.token == "" {
		return errors.UnauthorizedError("no API token configured; set BLOCKSMITH_API_TOKEN or run `blocksmith configure`")
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if workspace != "" {
		req.Header.Set("X-Blocksmith-Workspace", workspace)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(err, errors.ErrCodeTimeout,
				"backend did not respond in time; large payloads and slow links are the usual causes")
		}
		return errors.Wrap(err, errors.ErrCodeNetwork,
			fmt.Sprintf("failed to reach backend at %s; check your network and the backend URL", c.url))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeNetwork, "failed to read backend response")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.UnauthorizedError("backend rejected the API token; run `blocksmith configure` to update it")
	}
	if resp.StatusCode >= 500 {
		return errors.NewAppError(errors.ErrCodeNetwork,
			fmt.Sprintf("backend returned %s; try again later", resp.Status))
	}

	var gql gqlResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return errors.Wrap(err, errors.ErrCodeNetwork,
			fmt.Sprintf("backend returned a non-GraphQL response (%s)", resp.Status))
	}
	if len(gql.Errors) > 0 {
		return c.translateError(gql.Errors[0])
	}
	if out != nil && gql.Data != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode backend response")
		}
	}
	return nil
}

// translateError maps a GraphQL error onto the local taxonomy, keeping the
// backend's usage details around for plan-limit reporting.
func (c *Client) translateError(e gqlError) *errors.AppError {
	switch e.Extensions.Code {
	case "PLAN_LIMIT_EXCEEDED":
		appErr := errors.NewAppError(errors.ErrCodePlanLimit, e.Message)
		for k, v := range e.Extensions.Usage {
			appErr = appErr.WithContext(k, v)
		}
		return appErr
	case "UNAUTHENTICATED", "FORBIDDEN":
		return errors.UnauthorizedError(e.Message)
	case "NOT_FOUND":
		return errors.NewAppError(errors.ErrCodeNotFound, e.Message)
	default:
		return errors.NewAppError(errors.ErrCodePublishFail, e.Message)
	}
}

const publishMutation = `
mutation PublishResource($input: PublishResourceInput!) {
  publishResource(input: $input) {
    id
    version
  }
}`

// PublishResult is the backend's acknowledgement of a publish.
type PublishResult struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Publish pushes one resource to the backend. It uses the long publish
// timeout and invalidates the published-version memo for the resource.
func (c *Client) Publish(ctx context.Context, input PublishInput) (*PublishResult, error) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	var data struct {
		PublishResource PublishResult `json:"publishResource"`
	}
	if err := c.do(ctx, publishMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}

	ws := input.WorkspaceID
	if ws == "" {
		ws = c.workspace
	}
	c.versions.Remove(ws + "/" + input.Name)
	logger.Log.Debugf("published %s@%s", input.Name, data.PublishResource.Version)
	return &data.PublishResource, nil
}

const publishedVersionQuery = `
query PublishedVersion($name: String!) {
  resource(name: $name) {
    version
    published
    updatedAt
  }
}`

// GetPublishedVersion returns the backend's current version of a resource,
// memoized per workspace and resource name. workspace overrides the
// client's configured workspace when non-empty. A resource the backend does
// not know yields (nil, nil).
func (c *Client) GetPublishedVersion(ctx context.Context, name, workspace string) (*PublishedVersion, error) {
	if workspace == "" {
		workspace = c.workspace
	}
	key := workspace + "/" + name
	if v, ok := c.versions.Get(key); ok {
		return v, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data struct {
		Resource *PublishedVersion `json:"resource"`
	}
	if err := c.doIn(ctx, workspace, publishedVersionQuery, map[string]interface{}{"name": name}, &data); err != nil {
		if errors.GetAppError(err).Code == errors.ErrCodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	if data.Resource != nil {
		c.versions.Add(key, data.Resource)
	}
	return data.Resource, nil
}

const workspacesQuery = `
query Workspaces {
  workspaces {
    id
    name
    role
  }
}`

// Workspaces lists the workspaces available to the authenticated user.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data struct {
		Workspaces []Workspace `json:"workspaces"`
	}
	if err := c.do(ctx, workspacesQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Workspaces, nil
}
