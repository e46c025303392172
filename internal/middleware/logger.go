package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request.  Responses of 400 and above are
// logged at Error level, the rest at Info.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo's error handler write the response so the
				// status below is the one the client sees.
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			entry := log.WithFields(logrus.Fields{
				"method":      req.Method,
				"path":        req.URL.Path,
				"route":       c.Path(),
				"status":      res.Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   c.RealIP(),
				"bytes_out":   res.Size,
			})
			if id, ok := UserID(c); ok {
				entry = entry.WithField("user_id", id)
			}
			if err != nil {
				entry = entry.WithError(err)
			}
			if res.Status >= 400 {
				entry.Error("request")
			} else {
				entry.Info("request")
			}
			return nil
		}
	}
}
