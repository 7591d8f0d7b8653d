package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/osechi/internal/identity"
	"github.com/dyluth/osechi/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("event", "http_request").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Str("client", ratelimit.ClientKey(c.Request.Header)).
			Msg("Request handled")
	}
}

// rateLimit applies the shared fixed-window limiter. All text-generation
// endpoints count against the same per-client budget.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Limiter == nil {
			c.Next()
			return
		}

		d := s.deps.Limiter.Allow(ratelimit.ClientKey(c.Request.Header))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			endpoint := strings.TrimPrefix(c.FullPath(), "/api/")
			s.deps.Metrics.RateLimited(endpoint)
			retry := d.RetryAfterSeconds()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limited",
				"retry_after_seconds": retry,
			})
			return
		}

		c.Next()
	}
}

// authenticate resolves the caller's principal from a bearer token.
// Requests without a token act as guests; a token that fails verification
// is rejected.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" || s.deps.Verifier == nil || !s.deps.Verifier.Enabled() {
			c.Next()
			return
		}

		p, err := s.deps.Verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			s.logger.Info().Err(err).Str("event", "token_rejected").Msg("Rejected identity token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid identity token"})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// principal returns the caller's identity for the engine.
func principal(c *gin.Context) identity.Source {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(*identity.Principal); ok {
			return identity.NewStatic(p)
		}
	}
	return identity.Guest
}
