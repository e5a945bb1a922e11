package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/seamusod/adoitems/azure"
	mw "github.com/seamusod/adoitems/middleware"
)

// PatOverrideHeader lets a caller substitute their own PAT for the stored one
// on a single request.
const PatOverrideHeader = "X-Azure-DevOps-PAT"

type workItemCreate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type workItemUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ListWorkItems queries upstream via WIQL and returns normalized items.
// Pagination is limit upstream, offset applied locally over the id list.
func (h *Handler) ListWorkItems(c echo.Context) error {
	settings, err := h.resolveSettings(c)
	if err != nil {
		return err
	}

	limit := 200
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
	}

	wiql := azure.BuildWiql(azure.Filter{
		State: c.QueryParam("state"),
		Title: c.QueryParam("title"),
	})

	ctx := c.Request().Context()
	ids, err := h.ado.QueryIDs(ctx, settings, wiql, limit)
	if err != nil {
		return relayUpstream(err)
	}

	// Offset is a local slice over the fetched ids: it trims the final set
	// but does not reduce what was asked of upstream.
	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:min(len(ids), offset+limit)]

	if len(ids) == 0 {
		return c.JSON(http.StatusOK, map[string][]azure.WorkItem{"workItems": {}})
	}

	raws, err := h.ado.GetProjectWorkItems(ctx, settings, ids)
	if err != nil {
		return relayUpstream(err)
	}

	items := make([]azure.WorkItem, len(raws))
	for i, raw := range raws {
		items[i] = azure.Normalize(raw)
	}
	return c.JSON(http.StatusOK, map[string][]azure.WorkItem{"workItems": items})
}

// GetWorkItem fetches one work item and augments it with its browser URL.
func (h *Handler) GetWorkItem(c echo.Context) error {
	settings, err := h.resolveSettings(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}

	raw, err := h.ado.GetWorkItem(c.Request().Context(), settings, id)
	if err != nil {
		return relayUpstream(err)
	}

	item := azure.Normalize(*raw)
	item.WebURL = h.ado.WebURL(settings, item.ID)
	return c.JSON(http.StatusOK, item)
}

// GetWorkItemsBatch fetches a comma-separated id list, each item augmented
// with its browser URL.
func (h *Handler) GetWorkItemsBatch(c echo.Context) error {
	settings, err := h.resolveSettings(c)
	if err != nil {
		return err
	}

	var ids []int
	for _, part := range strings.Split(c.QueryParam("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "ids must be a comma-separated list of integers")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids param not set")
	}

	raws, err := h.ado.GetWorkItems(c.Request().Context(), settings, ids)
	if err != nil {
		return relayUpstream(err)
	}

	items := make([]azure.WorkItem, len(raws))
	for i, raw := range raws {
		items[i] = azure.Normalize(raw)
		items[i].WebURL = h.ado.WebURL(settings, items[i].ID)
	}
	return c.JSON(http.StatusOK, map[string][]azure.WorkItem{"workItems": items})
}

// CreateWorkItem creates a Task upstream with the given title and description.
func (h *Handler) CreateWorkItem(c echo.Context) error {
	settings, err := h.resolveSettings(c)
	if err != nil {
		return err
	}

	var req workItemCreate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description is required")
	}

	ops := []azure.PatchOp{
		{Op: "add", Path: "/fields/" + azure.FieldTitle, Value: req.Title},
		{Op: "add", Path: "/fields/" + azure.FieldDescription, Value: req.Description},
	}

	raw, err := h.ado.CreateWorkItem(c.Request().Context(), settings, ops)
	if err != nil {
		return relayUpstream(err)
	}

	return c.JSON(http.StatusCreated, azure.Normalize(*raw))
}

// UpdateWorkItem fetches current upstream state, merges the requested changes
// into a minimal patch and applies it. The GET strictly precedes the PATCH
// since the patch verbs depend on the fetched field bag.
func (h *Handler) UpdateWorkItem(c echo.Context) error {
	settings, err := h.resolveSettings(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}

	var req workItemUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	current, err := h.ado.GetWorkItem(ctx, settings, id)
	if err != nil {
		return relayUpstream(err)
	}

	ops, err := azure.BuildUpdatePatch(current.Fields, azure.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, azure.ErrNoFields) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	raw, err := h.ado.UpdateWorkItem(ctx, settings, id, ops)
	if err != nil {
		return relayUpstream(err)
	}

	return c.JSON(http.StatusOK, azure.Normalize(*raw))
}

// resolveSettings loads (or lazily creates) the caller's configuration and
// applies any per-request PAT override.
func (h *Handler) resolveSettings(c echo.Context) (azure.Settings, error) {
	user := mw.CurrentUser(c)

	record, err := h.loadOrCreateConfig(c.Request().Context(), user.ID)
	if err != nil {
		return azure.Settings{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	settings := azure.Settings{
		Org:        record.Org,
		Project:    record.Project,
		Pat:        record.Pat,
		APIVersion: record.APIVersion,
	}
	if pat := c.Request().Header.Get(PatOverrideHeader); pat != "" {
		settings.Pat = pat
	}
	return settings, nil
}

// relayUpstream maps upstream failures onto the response. Non-success
// upstream statuses pass through verbatim – status and body – everything
// else (transport faults) becomes a 502.
func relayUpstream(err error) error {
	var upstream *azure.Error
	if errors.As(err, &upstream) {
		return echo.NewHTTPError(upstream.StatusCode, upstream.Body)
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
