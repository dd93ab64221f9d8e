// Package middleware provides the middleware for the Echo instance
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"golang.org/x/time/rate"
)

// SetupLoggerMiddleware configures and adds middleware to the Echo instance
func SetupLoggerMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		// no ${uri}: query strings carry the session id
		Format: "${time_rfc3339}: id=${id}, ip=${remote_ip}, req=${method}, path=${path}, status=${status}, error=${error}, latency=${latency_human}\n",
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zaplogger.Error("panic recovered", zaplogger.Fields{
				"path":  c.Path(),
				"error": err.Error(),
				"stack": string(stack),
			})
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins(),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, HeaderSessionID},
	}))
	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit("10M"))
}

// LoginRateLimiter limits login attempts per client IP
func LoginRateLimiter(perSecond float64) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(perSecond)),
	})
}
