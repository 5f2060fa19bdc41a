package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/account-service/internal/log"
	"github.com/tazhibayda/account-service/internal/metrics"
	"github.com/tazhibayda/account-service/internal/repo"
	"github.com/tazhibayda/account-service/internal/security"
)

const (
	requestIDKey   = "X-Request-ID"
	authUserKey    = "auth_user"
	currentUserKey = "current_user"
	sessionCookie  = "token"
)

// AuthUser is the authenticated identity, passed explicitly rather than
// hiding on the request.
type AuthUser struct {
	ID    primitive.ObjectID
	Email string
	Role  string
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(requestIDKey)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDKey, rid)
		c.Set(requestIDKey, rid)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AccessLog emits one structured line per request. Bodies are never logged,
// so credentials and tokens stay out of the logs.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.L().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestID(c)))
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Recovery converts panics into the standard error envelope instead of a
// bare 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.L().Error("panic recovered",
			zap.Any("panic", rec),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestID(c)))
		abort(c, http.StatusInternalServerError, "internal server error")
	})
}

// AuthRequired resolves the session token (cookie first, then bearer),
// verifies it and attaches both the identity and the caller's record.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := sessionToken(c)
		if tok == "" {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := security.ParseAccess(h.JWTSecret, tok)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		uid, err := primitive.ObjectIDFromHex(claims.UID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		u, err := h.Store.FindUserByID(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "account no longer exists")
				return
			}
			abort(c, http.StatusInternalServerError, "database error")
			return
		}
		c.Set(authUserKey, AuthUser{ID: u.ID, Email: u.Email, Role: u.Role})
		c.Set(currentUserKey, u)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if tok, err := c.Cookie(sessionCookie); err == nil && tok != "" {
		return tok
	}
	ah := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return ""
}

// RateLimit applies a per-IP fixed window on sensitive routes. A nil Redis
// disables limiting (tests, single-node dev).
func (h *Handler) RateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.Redis.Allow(c.Request.Context(), route+":"+c.ClientIP(), h.RateLimitPerMin, time.Minute) {
			abort(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
