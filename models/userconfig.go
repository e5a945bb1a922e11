package models

import "github.com/uptrace/bun"

// UserConfig holds one user's Azure DevOps settings, one row per user.
// The PAT is stored for outbound calls but is never serialized in responses.
type UserConfig struct {
	bun.BaseModel `bun:"table:user_configs,alias:uc"`

	ID         int    `bun:"id,pk,autoincrement" json:"id"`
	UserID     int    `bun:"user_id,notnull,unique" json:"-"`
	Org        string `bun:"azure_devops_org,notnull" json:"azure_devops_org"`
	Project    string `bun:"azure_devops_project,notnull" json:"azure_devops_project"`
	Pat        string `bun:"azure_devops_pat,notnull" json:"-"`
	APIVersion string `bun:"api_version,notnull" json:"api_version"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
}
