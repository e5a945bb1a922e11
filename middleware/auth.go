package middleware

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/seamusod/adoitems/models"
)

// UserKey is the echo context key the resolved account is stored under.
const UserKey = "user"

// Claims extends jwt.RegisteredClaims with the account username.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Fingerprint returns the deterministic SHA-256 hex digest of a bearer secret.
// It narrows the account lookup to one candidate; authenticity still requires
// the bcrypt comparison afterwards.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves an account from the Authorization header and stores
// it in the echo context as *models.User. The header value is either a
// session JWT issued by /token or a raw bearer secret looked up by
// fingerprint and verified with bcrypt. All failure modes collapse into the
// same 401 so a caller cannot probe which stage rejected the credential.
func Authenticate(db *bun.DB, key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing authorization header")
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			user, err := resolveUser(c, db, key, token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			c.Set(UserKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the account placed in the context by Authenticate.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(UserKey).(*models.User)
	return user
}

var errUnauthorized = errors.New("unauthorized")

func resolveUser(c echo.Context, db *bun.DB, key []byte, token string) (*models.User, error) {
	ctx := c.Request().Context()

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err == nil && tkn.Valid {
		user := &models.User{}
		err := db.NewSelect().Model(user).
			Where("username = ?", claims.Username).
			Scan(ctx)
		if err != nil || user.Disabled {
			return nil, errUnauthorized
		}
		return user, nil
	}

	// Not one of our session tokens: treat the value as a raw bearer secret.
	user := &models.User{}
	err = db.NewSelect().Model(user).
		Where("pat_fingerprint = ?", Fingerprint(token)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnauthorized
		}
		return nil, err
	}
	if user.Disabled {
		return nil, errUnauthorized
	}

	// The fingerprint only nominates a candidate; bcrypt settles it.
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(token)); err != nil {
		return nil, errUnauthorized
	}
	return user, nil
}
