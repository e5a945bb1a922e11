package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/seamusod/adoitems/middleware"
	"github.com/seamusod/adoitems/models"
)

// configData is the externally visible configuration shape. The PAT is
// deliberately absent: reads expose a strict subset of the stored row.
type configData struct {
	Org        string `json:"azure_devops_org"`
	Project    string `json:"azure_devops_project"`
	APIVersion string `json:"api_version"`
}

type configUpdate struct {
	Org        *string `json:"azure_devops_org"`
	Project    *string `json:"azure_devops_project"`
	Pat        *string `json:"azure_devops_pat"`
	APIVersion *string `json:"api_version"`
}

// GetConfig returns the caller's Azure DevOps configuration, creating a
// default row from system settings on first access.
func (h *Handler) GetConfig(c echo.Context) error {
	user := mw.CurrentUser(c)

	record, err := h.loadOrCreateConfig(c.Request().Context(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, configData{
		Org:        record.Org,
		Project:    record.Project,
		APIVersion: record.APIVersion,
	})
}

// UpdateConfig applies a partial update to an existing row. When no row
// exists yet, all four fields are required – lenient on update, strict on
// create.
func (h *Handler) UpdateConfig(c echo.Context) error {
	user := mw.CurrentUser(c)
	ctx := c.Request().Context()

	var update configUpdate
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	record := &models.UserConfig{}
	err := h.db.NewSelect().Model(record).
		Where("user_id = ?", user.ID).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if update.Org == nil || update.Project == nil || update.Pat == nil || update.APIVersion == nil {
			return echo.NewHTTPError(http.StatusBadRequest,
				"all required fields must be provided to create a new configuration")
		}
		record = &models.UserConfig{
			UserID:     user.ID,
			Org:        *update.Org,
			Project:    *update.Project,
			Pat:        *update.Pat,
			APIVersion: *update.APIVersion,
		}
		if _, err := h.db.NewInsert().Model(record).Exec(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		if update.Org != nil {
			record.Org = *update.Org
		}
		if update.Project != nil {
			record.Project = *update.Project
		}
		if update.Pat != nil {
			record.Pat = *update.Pat
		}
		if update.APIVersion != nil {
			record.APIVersion = *update.APIVersion
		}
		if _, err := h.db.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, configData{
		Org:        record.Org,
		Project:    record.Project,
		APIVersion: record.APIVersion,
	})
}

// loadOrCreateConfig resolves a user's configuration row, seeding it from
// system defaults when missing. Deliberately a side-effecting read.
func (h *Handler) loadOrCreateConfig(ctx context.Context, userID int) (*models.UserConfig, error) {
	record := &models.UserConfig{}
	err := h.db.NewSelect().Model(record).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	record = &models.UserConfig{
		UserID:     userID,
		Org:        h.cfg.ADOOrg,
		Project:    h.cfg.ADOProject,
		Pat:        h.cfg.ADOPat,
		APIVersion: h.cfg.ADOAPIVersion,
	}
	if _, err := h.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}
