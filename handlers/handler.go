package handlers

import (
	"github.com/uptrace/bun"

	"github.com/seamusod/adoitems/azure"
	"github.com/seamusod/adoitems/config"
)

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	db  *bun.DB
	cfg *config.Config
	ado *azure.Client
}

// New creates a Handler with the given database, config and upstream client.
func New(db *bun.DB, cfg *config.Config, ado *azure.Client) *Handler {
	return &Handler{db: db, cfg: cfg, ado: ado}
}
