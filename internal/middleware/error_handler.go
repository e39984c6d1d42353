package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"
	"time"

	"pharmacy/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var internalError = apierror.New("Internal server error")

// ErrorHandler answers 500 for errors handlers attached with c.Error but
// did not respond to. Error details stay in the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		errs := c.Errors.ByType(gin.ErrorTypeAny)
		if len(errs) == 0 {
			return
		}
		ev := log.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("route", c.FullPath()).
			Strs("errors", errs.Errors())
		if c.Writer.Written() {
			ev.Msg("handler errors after response")
			return
		}
		ev.Msg("unhandled handler errors")
		c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
	}
}

// Recovery turns a panic into a 500. The stack goes to the log at error
// level; a client that hung up mid-response gets nothing written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, syscall.EPIPE) {
				log.Warn().Str("request_id", c.GetString(RequestIDKey)).Msg("client connection closed")
				c.Abort()
				return
			}
			log.Error().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("route", c.FullPath()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
		}()
		c.Next()
	}
}

// Logger writes one access line per request. 5xx responses log at error
// level and 4xx at warn; health checks are skipped.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		if v, ok := c.Get(ClaimsKey); ok {
			if claims, ok := v.(*JWTClaims); ok {
				ev = ev.Str("user_id", claims.UserID).Str("role", claims.Role)
			}
		}
		ev.Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
