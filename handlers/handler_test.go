package handlers

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"github.com/seamusod/adoitems/azure"
	"github.com/seamusod/adoitems/config"
	appdb "github.com/seamusod/adoitems/db"
	mw "github.com/seamusod/adoitems/middleware"
	"github.com/seamusod/adoitems/models"
)

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, appdb.CreateTables(context.Background(), db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		SigningAlg:    "HS256",
		TokenTTL:      30 * time.Minute,
		ADOOrg:        "default-org",
		ADOProject:    "default-project",
		ADOPat:        "default-pat",
		ADOAPIVersion: "7.1-preview.7",
	}
}

func newTestHandler(t *testing.T, ado *azure.Client) (*Handler, *bun.DB) {
	t.Helper()
	db := testDB(t)
	return New(db, testConfig(), ado), db
}

func seedUser(t *testing.T, db *bun.DB, username, secret string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:       username,
		Password:       string(hash),
		PatFingerprint: mw.Fingerprint(secret),
	}
	_, err = db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

// authedContext builds an echo context carrying the given body and the
// resolved user, the way Authenticate would leave it.
func authedContext(t *testing.T, method, target, body string, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		c.Set(mw.UserKey, user)
	}
	return c, rec
}
