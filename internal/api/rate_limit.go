package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edashow/mediaflow/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// userIDHeader keys the rate limit bucket. Requests without it share the
// anonymous bucket.
const userIDHeader = "X-User-ID"

type RateLimiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

func (s *Server) withRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || !shouldRateLimit(c.Request) {
			c.Next()
			return
		}

		subject := strings.TrimSpace(c.GetHeader(userIDHeader))
		if subject == "" {
			subject = "anonymous"
		}
		subject = subject + ":" + routeLabel(c)

		decision, err := s.rateLimiter.Allow(c.Request.Context(), subject)
		if err != nil {
			s.logger.Warn("rate limiter check failed", zap.String("subject", subject), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(c)).Inc()
		respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// shouldRateLimit limits writes and the image endpoint; reads are free.
func shouldRateLimit(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodOptions
}
