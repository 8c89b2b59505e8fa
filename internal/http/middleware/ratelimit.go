package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/config"
	"go.uber.org/zap"
)

// RateLimiter limits anonymous traffic per client IP and authenticated traffic
// per tenant member. Calls made with the system API key share one budget per tenant.
type RateLimiter struct {
	cfg        *config.RateLimitConfig
	logger     *zap.Logger
	exemptIPs  map[string]bool
	byIP       func(http.Handler) http.Handler
	byCaller   func(http.Handler) http.Handler
	credential func(http.Handler) http.Handler
}

// NewRateLimiter creates the limiters described by cfg
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:       cfg,
		logger:    logger,
		exemptIPs: make(map[string]bool, len(cfg.ExemptIPs)),
	}
	for _, ip := range cfg.ExemptIPs {
		rl.exemptIPs[ip] = true
	}

	credentialLimit := cfg.AuthRequestsPerMinute
	if credentialLimit <= 0 {
		credentialLimit = cfg.RequestsPerMinute
	}

	rl.byIP = rl.limiter(cfg.RequestsPerMinute, httprate.KeyByRealIP)
	rl.byCaller = rl.limiter(cfg.RequestsPerMinuteAuth, callerKey)
	rl.credential = rl.limiter(credentialLimit, httprate.KeyByRealIP)

	logger.Info("Rate limiter initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Int("requests_per_minute_auth", cfg.RequestsPerMinuteAuth),
		zap.Int("auth_requests_per_minute", credentialLimit),
		zap.Strings("exempt_ips", cfg.ExemptIPs),
	)

	return rl
}

func (rl *RateLimiter) limiter(limit int, keys ...httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(rl.rejected),
	)
}

// LimitByIP applies the per-IP limit; it runs before authentication
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return rl.wrap(rl.byIP, next)
}

// Limit applies the per-caller limit; it must run after authentication
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return rl.wrap(rl.byCaller, next)
}

// LimitAuth applies the stricter per-IP limit of register and login
func (rl *RateLimiter) LimitAuth(next http.Handler) http.Handler {
	return rl.wrap(rl.credential, next)
}

func (rl *RateLimiter) wrap(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}

	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip, _ := httprate.KeyByRealIP(r); rl.exemptIPs[ip] {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// callerKey buckets a request by user, by tenant for API-key calls, and by IP when anonymous
func callerKey(r *http.Request) (string, error) {
	userCtx, ok := auth.FromContext(r.Context())
	switch {
	case !ok || userCtx == nil:
		return httprate.KeyByRealIP(r)
	case userCtx.UserID == auth.SystemUserID:
		return "tenant:" + userCtx.TenantID.String(), nil
	default:
		return "user:" + userCtx.UserID.String(), nil
	}
}

func (rl *RateLimiter) rejected(w http.ResponseWriter, r *http.Request) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFromContext(r.Context())),
	}
	if userCtx, ok := auth.FromContext(r.Context()); ok && userCtx != nil {
		fields = append(fields,
			zap.String("tenant_id", userCtx.TenantID.String()),
			zap.String("user_id", userCtx.UserID.String()),
		)
	} else {
		ip, _ := httprate.KeyByRealIP(r)
		fields = append(fields, zap.String("client_ip", ip))
	}
	rl.logger.Warn("rate limit exceeded", fields...)

	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
