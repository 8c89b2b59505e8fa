package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/config"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/http/handler"
	"github.com/salescrm/crm-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/salescrm/crm-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth        *handler.AuthHandler
	Seller      *handler.SellerHandler
	Product     *handler.ProductHandler
	Customer    *handler.CustomerHandler
	Opportunity *handler.OpportunityHandler
	Dashboard   *handler.DashboardHandler
	Health      *handler.HealthHandler
}

type Router struct {
	cfg                    *config.Config
	logger                 *zap.Logger
	authMiddleware         *auth.Middleware
	tenantFilterMiddleware *middleware.TenantFilterMiddleware
	rateLimiter            *middleware.RateLimiter
	handlers               Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	tenantFilterMiddleware *middleware.TenantFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:                    cfg,
		logger:                 logger,
		authMiddleware:         authMiddleware,
		tenantFilterMiddleware: tenantFilterMiddleware,
		rateLimiter:            rateLimiter,
		handlers:               handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := rt.handlers

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	r.Get("/health", h.Health.Live)
	r.Get("/health/db", h.Health.Database)
	r.Get("/health/ready", h.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// Health checks and docs are not rate limited
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rateLimiter.LimitByIP)

		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(rt.rateLimiter.LimitAuth)
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/login", h.Auth.Login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.tenantFilterMiddleware.Filter)
			r.Use(rt.rateLimiter.Limit)

			r.Get("/auth/me", h.Auth.Me)
			r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin)).Get("/users", h.Auth.ListUsers)

			r.Route("/sellers", func(r chi.Router) {
				r.Get("/", h.Seller.List)
				r.Post("/", h.Seller.Create)
				r.Get("/{id}", h.Seller.GetByID)
				r.Put("/{id}", h.Seller.Update)
				r.Delete("/{id}", h.Seller.Delete)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.Product.List)
				r.Post("/", h.Product.Create)
				r.Get("/{id}", h.Product.GetByID)
				r.Put("/{id}", h.Product.Update)
				r.Delete("/{id}", h.Product.Delete)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.Customer.List)
				r.Post("/", h.Customer.Create)
				r.Get("/{id}", h.Customer.GetByID)
				r.Put("/{id}", h.Customer.Update)
				r.Delete("/{id}", h.Customer.Delete)
			})

			r.Route("/opportunities", func(r chi.Router) {
				r.Get("/", h.Opportunity.List)
				r.Post("/", h.Opportunity.Create)
				r.Get("/{id}", h.Opportunity.GetByID)
				r.Put("/{id}", h.Opportunity.Update)
				r.Patch("/{id}", h.Opportunity.Move)
				r.Delete("/{id}", h.Opportunity.Delete)
				r.Get("/{id}/history", h.Opportunity.History)
			})

			r.Get("/dashboard/kpis", h.Dashboard.KPIs)
			r.Get("/dashboard/charts", h.Dashboard.Charts)
		})
	})

	return r
}
