// Package adminauth guards the destructive admin endpoints of §6
// (/admin/drop-database, the catastrophic-recovery path of §7) behind a
// short-lived JWT plus an explicit confirm flag. Grounded on the
// teacher's internal/auth.TokenManager (HS256 signing over
// golang-jwt/jwt/v5), narrowed from the teacher's encrypted
// user/session claims to a single "admin" role claim since the core has
// no player accounts — only an operator token issued out of band.
package adminauth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"chronofauna/internal/apierr"
)

// Claims is the admin token's payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates operator admin tokens.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret []byte) *TokenManager {
	return &TokenManager{secret: secret}
}

// IssueToken mints an admin token valid for the given duration.
func (tm *TokenManager) IssueToken(ttl time.Duration) (string, error) {
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chronofauna-simcore",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate parses and verifies an admin token, returning an error if it
// is malformed, expired, or not signed with HS256.
func (tm *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("adminauth: unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Role != "admin" {
		return nil, errors.New("adminauth: invalid admin token")
	}
	return claims, nil
}

// Middleware rejects any request lacking a valid `Authorization: Bearer
// <token>` admin token (§6 destructive admin endpoints).
func (tm *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			apierr.RespondWithError(w, apierr.ErrAdminUnauthorized)
			return
		}
		if _, err := tm.Validate(tokenString); err != nil {
			apierr.RespondWithError(w, apierr.ErrAdminUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CheckConfirmationToken verifies a one-time confirmation string against
// its stored bcrypt hash, for the confirm=true destructive-operation gate
// (§7 "setting confirm=false on destructive admin endpoints").
func CheckConfirmationToken(hash, candidate string) error {
	if hash == "" {
		return errors.New("adminauth: no confirmation token configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err != nil {
		return apierr.ErrAdminUnauthorized
	}
	return nil
}

// ConstantTimeEqual compares two tokens without leaking timing
// information, used where a bcrypt hash is not available (e.g. a static
// operator header).
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
