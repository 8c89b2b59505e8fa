package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
	"github.com/salescrm/crm-api/internal/config"
	"go.uber.org/zap"
)

// Headers the API reads or writes beyond the configured lists
var (
	corsRequiredHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Tenant-ID", RequestIDHeader}
	corsExposedHeaders  = []string{"Location", "Retry-After", RequestIDHeader}
)

// CORS returns a CORS middleware configured from the application config.
// Without configured origins, local environments accept any origin and the others accept none.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, corsRequiredHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, corsExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	local := environment == "" || environment == "development" || environment == "local"

	switch {
	case slices.Contains(cfg.AllowedOrigins, "*"):
		if !local {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = anyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", cfg.AllowedOrigins))
	case local:
		options.AllowOriginFunc = anyOrigin
		logger.Info("CORS configured to allow all origins in development mode")
	default:
		// An empty AllowedOrigins list means "*" to go-chi/cors
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func anyOrigin(r *http.Request, origin string) bool {
	return origin != ""
}

// mergeHeaders appends each required header missing from configured, ignoring case
func mergeHeaders(configured, required []string) []string {
	out := slices.Clone(configured)
	for _, h := range required {
		if !slices.ContainsFunc(out, func(c string) bool { return strings.EqualFold(c, h) }) {
			out = append(out, h)
		}
	}
	return out
}
