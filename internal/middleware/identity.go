// Package middleware holds the HTTP middleware for the booking API:
// optional identity extraction and webhook/checkout rate limiting.
package middleware

import (
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// userIDKey is the context key the identity middleware stores under.
const userIDKey = "user_id"

// OptionalIdentity parses a Bearer token when one is present and
// attaches the numeric user id to the request context.  Requests
// without a token, or with one that fails verification, proceed as
// guest checkout — authentication proper is handled upstream of this
// service, so nothing here ever rejects a request.
func OptionalIdentity(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return next(c)
            }
            raw := strings.TrimPrefix(auth, "Bearer ")
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, jwt.ErrSignatureInvalid
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return next(c)
            }
            if cl, ok := tok.Claims.(jwt.MapClaims); ok {
                if id := claimUserID(cl); id != nil {
                    c.Set(userIDKey, id)
                }
            }
            return next(c)
        }
    }
}

// claimUserID pulls a numeric user id from the sub or user_id claim.
func claimUserID(cl jwt.MapClaims) *uint64 {
    for _, key := range []string{"sub", "user_id"} {
        switch v := cl[key].(type) {
        case string:
            if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
                return &n
            }
        case float64:
            if v > 0 {
                n := uint64(v)
                return &n
            }
        }
    }
    return nil
}

// UserID returns the authenticated user's id, or nil for guests.
func UserID(c echo.Context) *uint64 {
    if v, ok := c.Get(userIDKey).(*uint64); ok {
        return v
    }
    return nil
}
