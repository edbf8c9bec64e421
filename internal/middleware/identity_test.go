package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

// runIdentity pushes one request through OptionalIdentity and returns
// the user id the handler observed.
func runIdentity(t *testing.T, authHeader string) *uint64 {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    var got *uint64
    h := OptionalIdentity(testSecret)(func(c echo.Context) error {
        got = UserID(c)
        return c.NoContent(http.StatusOK)
    })
    if err := h(c); err != nil {
        t.Fatalf("handler: %v", err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("identity middleware must never reject, got %d", rec.Code)
    }
    return got
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
    t.Helper()
    tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        t.Fatalf("sign token: %v", err)
    }
    return tok
}

func TestOptionalIdentityGuestWithoutToken(t *testing.T) {
    if got := runIdentity(t, ""); got != nil {
        t.Fatalf("expected guest, got user %d", *got)
    }
}

func TestOptionalIdentityParsesSubClaim(t *testing.T) {
    tok := signToken(t, jwt.MapClaims{"sub": "42"}, testSecret)
    got := runIdentity(t, "Bearer "+tok)
    if got == nil || *got != 42 {
        t.Fatalf("expected user 42, got %v", got)
    }
}

func TestOptionalIdentityParsesNumericUserIDClaim(t *testing.T) {
    tok := signToken(t, jwt.MapClaims{"user_id": 7}, testSecret)
    got := runIdentity(t, "Bearer "+tok)
    if got == nil || *got != 7 {
        t.Fatalf("expected user 7, got %v", got)
    }
}

func TestOptionalIdentityBadSignatureFallsBackToGuest(t *testing.T) {
    tok := signToken(t, jwt.MapClaims{"sub": "42"}, "other-secret")
    if got := runIdentity(t, "Bearer "+tok); got != nil {
        t.Fatalf("forged token must not identify a user, got %d", *got)
    }
}
