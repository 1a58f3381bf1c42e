package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/dtroode/socialhub/internal/apperr"
)

const rateLimiterExpiry = 5 * time.Minute

// NewRateLimiter limits requests per client IP. Rejections are returned as
// apperr.KindTooManyRequests so the error handler renders and counts them.
func NewRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(
		echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperr.TooManyRequests("rate limit exceeded for " + identifier)
		},
	})
}
