package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const callerKey = "caller"

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware resolves the bearer token into a caller. Without required an
// absent token yields an anonymous caller; a present but bad token is always rejected.
func AuthMiddleware(identity *auth.Identity, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logger.FromContext(ctx)

			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" && !required {
				c.Set(callerKey, model.Caller{})
				return next(c)
			}

			caller, err := identity.Caller(ctx, token)
			if errors.Is(err, auth.ErrUnauthenticated) {
				l.Warn("unauthenticated request", zap.Error(err))
				return transportError(c, service.NewError(service.ErrorCodeUnauthenticated, "missing or invalid token"))
			}
			if err != nil {
				l.Error("failed to resolve caller", zap.Error(err))
				return transportError(c, service.NewError(service.ErrorCodeSystem, "failed to resolve caller"))
			}

			c.Set(callerKey, caller)
			c.SetRequest(c.Request().WithContext(logger.WithLogger(ctx, l.With(zap.String("caller_id", caller.UserID)))))
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func callerFrom(c echo.Context) model.Caller {
	if caller, ok := c.Get(callerKey).(model.Caller); ok {
		return caller
	}
	return model.Caller{}
}
