package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an API user. Password holds the bcrypt hash of the account secret;
// PatFingerprint is the SHA-256 hex of the same plaintext, used to narrow
// bearer-token lookups to a single candidate before the bcrypt comparison.
// Both are written together at registration time and never leave the server.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int       `bun:"id,pk,autoincrement" json:"id"`
	Username       string    `bun:"username,notnull,unique" json:"username"`
	FullName       *string   `bun:"full_name" json:"full_name,omitempty"`
	Password       string    `bun:"password,notnull" json:"-"`
	PatFingerprint string    `bun:"pat_fingerprint,notnull" json:"-"`
	Disabled       bool      `bun:"disabled,notnull,default:false" json:"disabled"`
	CreatedAt      time.Time `bun:"created_at,notnull,nullzero,default:current_timestamp" json:"-"`

	Config *UserConfig `bun:"rel:has-one,join:id=user_id" json:"-"`
}
