package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and
// monitoring systems.  It intentionally checks nothing downstream: a
// degraded Redis or broker must not take API instances out of
// rotation, since the booking ledger itself only needs the database.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
