package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"momoinvoice/internal/common"

	"github.com/labstack/echo/v4"
)

// RateLimiter counts hits for a key within a fixed window.
type RateLimiter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit rejects requests once the key built by keyFn exceeds limit hits in window.
// A limiter error fails closed.
func RateLimit(limiter RateLimiter, scope string, limit int, window time.Duration, keyFn func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}

			key := scope + ":" + keyFn(c)
			limited, err := limiter.IsRateLimited(c.Request().Context(), key, limit, window)
			if err != nil || limited {
				c.Response().Header().Set("Retry-After", formatSeconds(window))
				return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse(
					"RATE_LIMITED",
					"Too many requests, please try again later",
					nil,
				))
			}
			return next(c)
		}
	}
}

// ClientIPAndParam keys on the caller's IP plus the named path parameter.
func ClientIPAndParam(param string) func(c echo.Context) string {
	return func(c echo.Context) string {
		return c.RealIP() + ":" + c.Param(param)
	}
}

func formatSeconds(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
