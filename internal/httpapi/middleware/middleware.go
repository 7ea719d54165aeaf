package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/models"
	"github.com/callsim/callsim/internal/ratelimit"
)

const (
	ctxUserKey   = "auth.user"
	ctxMasterKey = "auth.master"

	// RequestIDHeader is echoed back on every response.
	RequestIDHeader = "X-Request-ID"
)

// CurrentUser returns the authenticated user, or nil for master-key calls.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// IsMaster reports whether the request authenticated with the operator key.
func IsMaster(c *gin.Context) bool {
	v, ok := c.Get(ctxMasterKey)
	return ok && v == true
}

// RequestID tags each request with a ULID, honoring one supplied upstream.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = common.NewULID()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// Recovery converts panics into uniform 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L.WithField("panic", r).
					WithField("path", c.Request.URL.Path).
					Error("request panic")
				common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired resolves a Bearer access token into the active user behind it.
func AuthRequired(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "missing or malformed authorization header")
			c.Abort()
			return
		}
		user, err := svc.ResolveToken(c.Request.Context(), token)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// APIKeyOrJWT admits Bearer tokens, per-user API keys and the operator master
// key. Master-key calls carry no user identity.
func APIKeyOrJWT(svc *auth.Service, masterKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			user, err := svc.ResolveToken(c.Request.Context(), token)
			if err != nil {
				common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid or expired token")
				c.Abort()
				return
			}
			c.Set(ctxUserKey, user)
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required")
			c.Abort()
			return
		}
		if masterKey != "" && auth.ConstantTimeEqual(key, masterKey) {
			c.Set(ctxMasterKey, true)
			c.Next()
			return
		}
		user, err := svc.ResolveAPIKey(c.Request.Context(), key)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid api key")
			c.Abort()
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// RoleRequired gates a route to the named roles. Runs after AuthRequired.
func RoleRequired(policy auth.Policy, roles ...string) gin.HandlerFunc {
	if policy == nil {
		policy = auth.DefaultPolicy
	}
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !policy(user.Role, roles) {
			common.Fail(c, http.StatusForbidden, common.CodeForbidden, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit applies the sliding window per identity: the authenticated user
// id when present, the client IP otherwise. Limiter errors fail open.
func RateLimit(limiter ratelimit.Limiter, auditLog *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		identity := c.ClientIP()
		var userID *string
		if user := CurrentUser(c); user != nil {
			identity = user.ID
			userID = &user.ID
		}

		allowed, _, err := limiter.Allow(c.Request.Context(), identity)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			auditLog.Log(c.Request.Context(), audit.Entry{
				UserID:     userID,
				EventType:  audit.EventRateLimitExceeded,
				Resource:   "http",
				Action:     c.Request.Method + " " + c.FullPath(),
				IPAddress:  c.ClientIP(),
				UserAgent:  c.Request.UserAgent(),
				StatusCode: http.StatusTooManyRequests,
			})
			common.Fail(c, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
