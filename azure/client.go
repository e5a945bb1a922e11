// Package azure talks to the Azure DevOps work-item REST API: it builds the
// outbound URLs, WIQL queries and JSON-patch payloads, and reshapes upstream
// responses into the gateway's output schema.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production Azure DevOps endpoint.
const DefaultBaseURL = "https://dev.azure.com"

// Settings is the per-request resolved configuration for upstream calls.
type Settings struct {
	Org        string
	Project    string
	Pat        string
	APIVersion string
}

// Error carries an upstream failure verbatim. The gateway relays the status
// code and body to the caller untouched.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("azure devops: status %d: %s", e.StatusCode, e.Body)
}

// RawWorkItem is the upstream canonical form: an id, a field bag and a self link.
type RawWorkItem struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields"`
	URL    string                 `json:"url"`
}

// Client issues requests against the Azure DevOps API. BaseURL is
// overridable so tests can point at a local server.
type Client struct {
	BaseURL string
	HTTPC   *http.Client
}

// NewClient returns a Client against the production endpoint with a bounded timeout.
func NewClient() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthHeader builds the Basic authorization value for a PAT. Azure DevOps
// expects base64(":" + pat) – the leading colon is an empty username.
func AuthHeader(pat string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + pat))
	return "Basic " + encoded
}

// WebURL returns the browser URL for a work item.
func (c *Client) WebURL(s Settings, id int) string {
	return fmt.Sprintf("%s/%s/%s/_workitems/edit/%d", c.BaseURL, url.PathEscape(s.Org), url.PathEscape(s.Project), id)
}

// QueryIDs runs a WIQL query project-scoped and returns up to top matching
// work-item ids in query order.
func (c *Client) QueryIDs(ctx context.Context, s Settings, wiql string, top int) ([]int, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(top))
	q.Set("api-version", s.APIVersion)
	u := fmt.Sprintf("%s/%s/%s/_apis/wit/wiql?%s", c.BaseURL, url.PathEscape(s.Org), url.PathEscape(s.Project), q.Encode())

	payload, err := json.Marshal(map[string]string{"query": wiql})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, u, s.Pat, "application/json", payload, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding wiql response: %w", err)
	}

	ids := make([]int, len(result.WorkItems))
	for i, wi := range result.WorkItems {
		ids[i] = wi.ID
	}
	return ids, nil
}

// GetWorkItem fetches a single work item, organization-scoped.
func (c *Client) GetWorkItem(ctx context.Context, s Settings, id int) (*RawWorkItem, error) {
	q := url.Values{}
	q.Set("api-version", s.APIVersion)
	u := fmt.Sprintf("%s/%s/_apis/wit/workitems/%d?%s", c.BaseURL, url.PathEscape(s.Org), id, q.Encode())

	body, err := c.do(ctx, http.MethodGet, u, s.Pat, "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	item := &RawWorkItem{}
	if err := json.Unmarshal(body, item); err != nil {
		return nil, fmt.Errorf("decoding work item: %w", err)
	}
	return item, nil
}

// GetWorkItems fetches several work items by id, organization-scoped.
func (c *Client) GetWorkItems(ctx context.Context, s Settings, ids []int) ([]RawWorkItem, error) {
	u := fmt.Sprintf("%s/%s/_apis/wit/workitems?%s", c.BaseURL, url.PathEscape(s.Org), idsQuery(s, ids))
	return c.getItems(ctx, s, u)
}

// GetProjectWorkItems fetches several work items by id, project-scoped.
// The list endpoint uses this variant so results stay inside the project.
func (c *Client) GetProjectWorkItems(ctx context.Context, s Settings, ids []int) ([]RawWorkItem, error) {
	u := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems?%s", c.BaseURL, url.PathEscape(s.Org), url.PathEscape(s.Project), idsQuery(s, ids))
	return c.getItems(ctx, s, u)
}

// CreateWorkItem creates a Task from the given patch operations.
// Azure returns 200 or 201 on success depending on the API version.
func (c *Client) CreateWorkItem(ctx context.Context, s Settings, ops []PatchOp) (*RawWorkItem, error) {
	q := url.Values{}
	q.Set("api-version", s.APIVersion)
	u := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/$Task?%s", c.BaseURL, url.PathEscape(s.Org), url.PathEscape(s.Project), q.Encode())

	payload, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, u, s.Pat, "application/json-patch+json", payload, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	item := &RawWorkItem{}
	if err := json.Unmarshal(body, item); err != nil {
		return nil, fmt.Errorf("decoding created work item: %w", err)
	}
	return item, nil
}

// UpdateWorkItem applies patch operations to an existing work item.
func (c *Client) UpdateWorkItem(ctx context.Context, s Settings, id int, ops []PatchOp) (*RawWorkItem, error) {
	q := url.Values{}
	q.Set("api-version", s.APIVersion)
	u := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/%d?%s", c.BaseURL, url.PathEscape(s.Org), url.PathEscape(s.Project), id, q.Encode())

	payload, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPatch, u, s.Pat, "application/json-patch+json", payload, http.StatusOK)
	if err != nil {
		return nil, err
	}

	item := &RawWorkItem{}
	if err := json.Unmarshal(body, item); err != nil {
		return nil, fmt.Errorf("decoding updated work item: %w", err)
	}
	return item, nil
}

func (c *Client) getItems(ctx context.Context, s Settings, u string) ([]RawWorkItem, error) {
	body, err := c.do(ctx, http.MethodGet, u, s.Pat, "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []RawWorkItem `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding work items: %w", err)
	}
	return result.Value, nil
}

// do performs a single upstream call. Any status outside wantStatus becomes
// an *Error carrying the upstream status and body verbatim.
func (c *Client) do(ctx context.Context, method, u, pat, contentType string, payload []byte, wantStatus ...int) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", AuthHeader(pat))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPC.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	for _, want := range wantStatus {
		if resp.StatusCode == want {
			return body, nil
		}
	}
	return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
}

func idsQuery(s Settings, ids []int) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(strs, ","))
	q.Set("api-version", s.APIVersion)
	return q.Encode()
}
