package echoapi

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/rbac"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
	"github.com/trezcool/academia/services/ratelimit"
)

// requireCapability lets the request through when the current roles of the user grant any of caps.
// Roles are read from the database, not from the token.
func requireCapability(svc *user.Service, caps ...rbac.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, c := range caps {
				if rbac.Can(usr.Roles, c) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware counts requests per client address and route.
// Limiter failures are logged and the request goes through.
func rateLimitMiddleware(limiter *ratelimit.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			route := ctx.Path()
			res, err := limiter.Allow(ctx.Request().Context(), ctx.RealIP()+"|"+route)
			if err != nil {
				logger.Warn("rate limiter: "+err.Error(), err)
				return next(ctx)
			}

			header := ctx.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Max()))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RateLimited.WithLabelValues(route).Inc()
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// metricsMiddleware records every request once the error handler has written the response.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			status := strconv.Itoa(ctx.Response().Status)
			metrics.HTTPRequests.WithLabelValues(method, route, status).Inc()
			metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
