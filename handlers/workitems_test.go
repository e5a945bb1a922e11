package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamusod/adoitems/azure"
)

// fakeUpstream plays the Azure DevOps API and records the calls it receives.
type fakeUpstream struct {
	t     *testing.T
	calls []string // "METHOD path"

	wiqlIDs      []int
	wiqlGotTop   string
	detailsIDs   string
	currentItem  azure.RawWorkItem
	failStatus   int // when set, every call fails with this status
	failBody     string
	patchedOps   []azure.PatchOp
	patchedCount int
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		if f.failStatus != 0 {
			w.WriteHeader(f.failStatus)
			_, _ = w.Write([]byte(f.failBody))
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/_apis/wit/wiql"):
			f.wiqlGotTop = r.URL.Query().Get("$top")
			items := make([]map[string]int, len(f.wiqlIDs))
			for i, id := range f.wiqlIDs {
				items[i] = map[string]int{"id": id}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"workItems": items})

		case r.Method == http.MethodPatch:
			f.patchedCount++
			_ = json.NewDecoder(r.Body).Decode(&f.patchedOps)
			_ = json.NewEncoder(w).Encode(f.currentItem)

		case strings.Contains(r.URL.Path, "/_apis/wit/workitems/"):
			_ = json.NewEncoder(w).Encode(f.currentItem)

		case strings.HasSuffix(r.URL.Path, "/_apis/wit/workitems"):
			f.detailsIDs = r.URL.Query().Get("ids")
			var value []azure.RawWorkItem
			for _, part := range strings.Split(f.detailsIDs, ",") {
				id, _ := strconv.Atoi(part)
				value = append(value, azure.RawWorkItem{ID: id, Fields: map[string]interface{}{azure.FieldTitle: "t"}})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": value})

		default:
			f.t.Fatalf("unexpected upstream call: %s %s", r.Method, r.URL.Path)
		}
	}
}

func workItemsHandler(t *testing.T, f *fakeUpstream) (*Handler, func(method, target, body string) (echo.Context, *httptest.ResponseRecorder)) {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	ado := &azure.Client{BaseURL: srv.URL, HTTPC: srv.Client()}
	h, db := newTestHandler(t, ado)
	user := seedUser(t, db, "alice", "pat")

	return h, func(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
		return authedContext(t, method, target, body, user)
	}
}

func TestListWorkItemsPagination(t *testing.T) {
	// Upstream honors $top=3 out of 5 matches; the offset trims locally.
	f := &fakeUpstream{wiqlIDs: []int{10, 11, 12}}
	h, ctx := workItemsHandler(t, f)

	c, rec := ctx(http.MethodGet, "/workitems?limit=3&offset=1", "")
	require.NoError(t, h.ListWorkItems(c))

	assert.Equal(t, "3", f.wiqlGotTop)
	assert.Equal(t, "11,12", f.detailsIDs)

	var body map[string][]azure.WorkItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["workItems"], 2)
	assert.Equal(t, 11, body["workItems"][0].ID)
}

func TestListWorkItemsEmptyShortCircuit(t *testing.T) {
	f := &fakeUpstream{wiqlIDs: nil}
	h, ctx := workItemsHandler(t, f)

	c, rec := ctx(http.MethodGet, "/workitems", "")
	require.NoError(t, h.ListWorkItems(c))

	// Only the WIQL call happened, no details fetch.
	assert.Len(t, f.calls, 1)
	assert.JSONEq(t, `{"workItems":[]}`, rec.Body.String())
}

func TestListWorkItemsBadParams(t *testing.T) {
	h, ctx := workItemsHandler(t, &fakeUpstream{})

	for _, target := range []string{"/workitems?limit=0", "/workitems?limit=x", "/workitems?offset=-1"} {
		c, _ := ctx(http.MethodGet, target, "")
		err := h.ListWorkItems(c)
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he, target)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}

func TestGetWorkItemAddsWebURL(t *testing.T) {
	f := &fakeUpstream{currentItem: azure.RawWorkItem{
		ID:     5,
		Fields: map[string]interface{}{azure.FieldTitle: "hello"},
	}}
	h, ctx := workItemsHandler(t, f)

	c, rec := ctx(http.MethodGet, "/workitems/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.GetWorkItem(c))

	var item azure.WorkItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, 5, item.ID)
	assert.True(t, strings.HasSuffix(item.WebURL, "/default-org/default-project/_workitems/edit/5"), item.WebURL)
}

func TestGetWorkItemsBatch(t *testing.T) {
	f := &fakeUpstream{}
	h, ctx := workItemsHandler(t, f)

	c, rec := ctx(http.MethodGet, "/workitems/batch?ids=1,2", "")
	require.NoError(t, h.GetWorkItemsBatch(c))

	var body map[string][]azure.WorkItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["workItems"], 2)
	for _, item := range body["workItems"] {
		assert.Contains(t, item.WebURL, "/_workitems/edit/")
	}
}

func TestCreateWorkItemRelaysUpstreamError(t *testing.T) {
	f := &fakeUpstream{failStatus: http.StatusBadRequest, failBody: `{"message":"VS403: bad field"}`}
	h, ctx := workItemsHandler(t, f)

	c, _ := ctx(http.MethodPost, "/workitems", `{"title":"t","description":"d"}`)
	err := h.CreateWorkItem(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, `{"message":"VS403: bad field"}`, he.Message)
}

func TestCreateWorkItemValidation(t *testing.T) {
	h, ctx := workItemsHandler(t, &fakeUpstream{})

	c, _ := ctx(http.MethodPost, "/workitems", `{"description":"d"}`)
	err := h.CreateWorkItem(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestUpdateWorkItemGetThenPatch(t *testing.T) {
	f := &fakeUpstream{currentItem: azure.RawWorkItem{
		ID: 9,
		Fields: map[string]interface{}{
			azure.FieldTitle: "old",
			azure.FieldTags:  "enhanced",
		},
	}}
	h, ctx := workItemsHandler(t, f)

	c, _ := ctx(http.MethodPatch, "/workitems/9", `{"title":"new"}`)
	c.SetParamNames("id")
	c.SetParamValues("9")
	require.NoError(t, h.UpdateWorkItem(c))

	require.Len(t, f.calls, 2)
	assert.True(t, strings.HasPrefix(f.calls[0], http.MethodGet), f.calls[0])
	assert.True(t, strings.HasPrefix(f.calls[1], http.MethodPatch), f.calls[1])

	require.Len(t, f.patchedOps, 1)
	assert.Equal(t, azure.PatchOp{Op: "replace", Path: "/fields/System.Title", Value: "new"}, f.patchedOps[0])
}

func TestUpdateWorkItemNoOpIsValidationError(t *testing.T) {
	f := &fakeUpstream{currentItem: azure.RawWorkItem{
		ID:     9,
		Fields: map[string]interface{}{azure.FieldTags: "foo; enhanced"},
	}}
	h, ctx := workItemsHandler(t, f)

	c, _ := ctx(http.MethodPatch, "/workitems/9", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("9")
	err := h.UpdateWorkItem(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, "no fields provided for update", he.Message)
	// Nothing to merge, so no PATCH went out.
	assert.Equal(t, 0, f.patchedCount)
}

func TestUpdateWorkItemExistenceCheckFailureSurfaced(t *testing.T) {
	f := &fakeUpstream{failStatus: http.StatusNotFound, failBody: "work item does not exist"}
	h, ctx := workItemsHandler(t, f)

	c, _ := ctx(http.MethodPatch, "/workitems/404", `{"title":"x"}`)
	c.SetParamNames("id")
	c.SetParamValues("404")
	err := h.UpdateWorkItem(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "work item does not exist", he.Message)
}

func TestPatOverrideHeaderUsedUpstream(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(azure.RawWorkItem{ID: 1})
	}))
	t.Cleanup(srv.Close)

	ado := &azure.Client{BaseURL: srv.URL, HTTPC: srv.Client()}
	h, db := newTestHandler(t, ado)
	user := seedUser(t, db, "alice", "pat")

	c, _ := authedContext(t, http.MethodGet, "/workitems/1", "", user)
	c.Request().Header.Set(PatOverrideHeader, "override-pat")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.GetWorkItem(c))

	assert.Equal(t, azure.AuthHeader("override-pat"), gotAuth)
}
