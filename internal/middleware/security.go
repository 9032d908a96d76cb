package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"scopeboard/internal/services"
)

// EditorKey is the gin context key holding the authenticated editor
const EditorKey = "editor"

// RateLimiter implements token bucket rate limiting per IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows 100 requests per second per IP, burst of 200
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWith(rate.Limit(100), 200)
}

// NewTokenRateLimiter is the stricter limiter for token issuance:
// 5 requests per minute per IP, burst of 10
func NewTokenRateLimiter() *RateLimiter {
	return NewRateLimiterWith(rate.Every(12*time.Second), 10)
}

func NewRateLimiterWith(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// GetLimiter gets or creates a limiter for an IP address
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[ip]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware enforces rate limiting per IP
func RateLimitMiddleware(limiter *RateLimiter, logger *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			logger.LogRateLimited(ip, c.FullPath())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// CORSMiddleware configures CORS with security restrictions
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		normalizedOrigin := strings.TrimRight(origin, "/")

		if OriginAllowed(normalizedOrigin, allowedOrigins) {
			c.Header("Vary", "Origin")
			if normalizedOrigin != "" {
				c.Header("Access-Control-Allow-Origin", normalizedOrigin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// OriginAllowed reports whether origin matches the configured list. An
// empty list allows any non-empty origin.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return origin != ""
	}
	for _, o := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		if trimmed == "" {
			continue
		}
		if trimmed == "*" || origin == trimmed {
			return true
		}
		// bare host entries match any scheme
		if !strings.Contains(trimmed, "://") {
			if parsed, err := url.Parse(origin); err == nil && parsed.Host == trimmed {
				return true
			}
		}
	}
	return false
}

// IPWhitelist restricts access to a fixed set of client IPs
type IPWhitelist struct {
	ips map[string]bool
	mu  sync.RWMutex
}

// NewIPWhitelist creates a new IP whitelist
func NewIPWhitelist(ips []string) *IPWhitelist {
	wl := &IPWhitelist{
		ips: make(map[string]bool),
	}
	for _, ip := range ips {
		wl.ips[ip] = true
	}
	return wl
}

// IsAllowed checks if an IP is whitelisted
func (wl *IPWhitelist) IsAllowed(ip string) bool {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	// Allow localhost always
	if ip == "127.0.0.1" || ip == "::1" || ip == "localhost" {
		return true
	}

	// If no whitelist configured, allow all
	if len(wl.ips) == 0 {
		return true
	}

	ipOnly, _, _ := net.SplitHostPort(ip)
	if ipOnly == "" {
		ipOnly = ip
	}

	return wl.ips[ipOnly]
}

// IPWhitelistMiddleware enforces IP whitelisting
func IPWhitelistMiddleware(whitelist *IPWhitelist, logger *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !whitelist.IsAllowed(ip) {
			logger.LogDenied(ip)
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthMiddleware requires a valid editor token in the Authorization header
func AuthMiddleware(auth *services.AuthService, logger *SecurityLogger) gin.HandlerFunc {
	validator := NewInputValidator()
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" || !validator.ValidateToken(token) {
			logger.LogFailedAuth(c.ClientIP(), "missing or malformed bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			logger.LogFailedAuth(c.ClientIP(), "invalid token: "+err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(EditorKey, claims.Editor)
		c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer ..."
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// SecurityLogger logs security events
type SecurityLogger struct {
	logger *zap.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *zap.Logger) *SecurityLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityLogger{logger: logger.Named("security")}
}

// LogFailedAuth logs failed authentication attempts
func (sl *SecurityLogger) LogFailedAuth(ip string, reason string) {
	sl.logger.Warn("failed authentication", zap.String("ip", ip), zap.String("reason", reason))
}

// LogTokenGenerated logs successful token generation
func (sl *SecurityLogger) LogTokenGenerated(ip string, editor string) {
	sl.logger.Info("token generated", zap.String("ip", ip), zap.String("editor", editor))
}

func (sl *SecurityLogger) LogRateLimited(ip, path string) {
	sl.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", path))
}

func (sl *SecurityLogger) LogDenied(ip string) {
	sl.logger.Warn("access denied for non-whitelisted IP", zap.String("ip", ip))
}

// LogWebSocketConnected logs successful WebSocket connections
func (sl *SecurityLogger) LogWebSocketConnected(ip string, editor string) {
	sl.logger.Info("websocket connected", zap.String("ip", ip), zap.String("editor", editor))
}

// InputValidator validates and sanitizes user input
type InputValidator struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateToken checks if token format is valid
func (iv *InputValidator) ValidateToken(token string) bool {
	// JWT tokens are in format: header.payload.signature
	if len(token) < 20 || len(token) > 4096 {
		return false
	}
	return strings.Count(token, ".") == 2
}

// ValidateEditorName checks if an editor name is safe to embed in a token
func (iv *InputValidator) ValidateEditorName(name string) bool {
	if len(name) < 1 || len(name) > 255 {
		return false
	}
	for _, c := range name {
		if !isWordChar(c) && c != '-' && c != '.' && c != '@' {
			return false
		}
	}
	return true
}

// ValidateVariableName checks the identifier shape of a variable name
func (iv *InputValidator) ValidateVariableName(name string) bool {
	if len(name) < 1 || len(name) > 128 {
		return false
	}
	for i, c := range name {
		if !isWordChar(c) || (i == 0 && c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func isWordChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}
