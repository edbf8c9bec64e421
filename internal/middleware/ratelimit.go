package middleware

import (
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// NewFixedWindow rate-limits a route group to perMin requests per
// client IP per minute, counted in Redis so the limit holds across
// instances.  INCR+EXPIRE in a pipeline is atomic enough at this
// granularity; when Redis is down the limiter fails open, since
// rejecting checkout traffic over a cache outage would be worse than
// briefly losing the limit.
func NewFixedWindow(rdb *redis.Client, perMin int) echo.MiddlewareFunc {
    if rdb == nil || perMin <= 0 {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            window := time.Now().UTC().Unix() / 60
            key := fmt.Sprintf("ratelimit:%s:%s:%d", c.Path(), ip, window)

            ctx := c.Request().Context()
            pipe := rdb.TxPipeline()
            count := pipe.Incr(ctx, key)
            pipe.Expire(ctx, key, 2*time.Minute)
            if _, err := pipe.Exec(ctx); err != nil {
                c.Logger().Warnf("ratelimit: redis error for key=%s: %v", key, err)
                return next(c)
            }
            if count.Val() > int64(perMin) {
                c.Response().Header().Set("Retry-After", "60")
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error": "too_many_requests",
                })
            }
            return next(c)
        }
    }
}
