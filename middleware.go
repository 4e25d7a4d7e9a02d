package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const sessionCookie = "bs_session"

// jwtAuthMiddleware guards owner endpoints with the bearer tokens issued by
// loginHandler.
func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

// sessionRequired guards claimant endpoints. The cookie is issued by the join
// endpoint; a request without one has not joined the receipt yet.
func sessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || sid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session; join the receipt first"})
			c.Abort()
			return
		}
		c.Set("session_id", sid)
		c.Next()
	}
}

// limiterRegistry hands out one token bucket per claimant session. SetLimit
// retunes existing buckets live (config hot reload).
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

var claimLimiters = &limiterRegistry{
	limiters: make(map[string]*rate.Limiter),
	limit:    rate.Limit(5),
	burst:    10,
}

func (r *limiterRegistry) SetLimit(rps float64, burst int) {
	if rps <= 0 || burst < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = rate.Limit(rps)
	r.burst = burst
	for _, l := range r.limiters {
		l.SetLimit(r.limit)
		l.SetBurst(r.burst)
	}
}

func (r *limiterRegistry) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	return l
}

// claimRateLimit throttles mutating claim endpoints per session.
func claimRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetString("session_id")
		if sid == "" {
			sid = c.ClientIP()
		}
		if !claimLimiters.get(sid).Allow() {
			claimsRejected.WithLabelValues("rate_limited").Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client", c.ClientIP(),
		)
	}
}
