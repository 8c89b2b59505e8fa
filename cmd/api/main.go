package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salescrm/crm-api/docs"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/config"
	"github.com/salescrm/crm-api/internal/database"
	"github.com/salescrm/crm-api/internal/datawarehouse"
	"github.com/salescrm/crm-api/internal/http/handler"
	"github.com/salescrm/crm-api/internal/http/middleware"
	"github.com/salescrm/crm-api/internal/http/router"
	"github.com/salescrm/crm-api/internal/jobs"
	"github.com/salescrm/crm-api/internal/logger"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/service"
	"github.com/salescrm/crm-api/internal/storage"
	"go.uber.org/zap"
)

// @title Sales CRM API
// @version 1.0
// @description Multi-tenant sales CRM: sellers, products, customers, the opportunity pipeline and dashboard KPIs

// @contact.name API Support
// @contact.email support@salescrm.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token issued by /auth/login or /auth/register

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API key for system callers; requires the X-Tenant-ID header
// @Security BearerAuth
// @Security ApiKeyAuth

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("PUBLIC_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Development reads secrets from the environment, staging and production from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("SQLite schema migrated", zap.String("path", cfg.Database.Path))
	}

	exportStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The warehouse is optional; the app runs without it
	dwClient, err := datawarehouse.NewClient(&cfg.Warehouse, log)
	if err != nil {
		log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
		dwClient = nil
	}
	var warehouse service.SalesWarehouse
	if dwClient != nil {
		warehouse = dwClient
	}

	// Repositories
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	sellerRepo := repository.NewSellerRepository(db)
	productRepo := repository.NewProductRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)

	// Services
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLDuration())
	authService := service.NewAuthService(db, tenantRepo, userRepo, tokens, log)
	sellerService := service.NewSellerService(sellerRepo, log)
	productService := service.NewProductService(productRepo, log)
	customerService := service.NewCustomerService(customerRepo, sellerRepo, log)
	opportunityService := service.NewOpportunityService(opportunityRepo, customerRepo, sellerRepo, productRepo, historyRepo, log)
	dashboardService := service.NewDashboardService(opportunityRepo, log)
	exportService := service.NewExportService(
		tenantRepo,
		dashboardService,
		exportStorage,
		warehouse,
		log,
		cfg.Jobs.SalesExportConcurrency,
		cfg.Jobs.SalesExportMonths,
	)

	// Middleware
	authMiddleware := auth.NewMiddleware(tokens, cfg.Auth.APIKey, log)
	tenantFilter := middleware.NewTenantFilterMiddleware(tenantRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, authMiddleware, tenantFilter, rateLimiter, router.Handlers{
		Auth:        handler.NewAuthHandler(authService, log),
		Seller:      handler.NewSellerHandler(sellerService, log),
		Product:     handler.NewProductHandler(productService, log),
		Customer:    handler.NewCustomerHandler(customerService, log),
		Opportunity: handler.NewOpportunityHandler(opportunityService, log),
		Dashboard:   handler.NewDashboardHandler(dashboardService, log),
		Health:      handler.NewHealthHandler(db, dwClient, log),
	})

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		job := jobs.NewSalesExportJob(exportService, log, 0)
		if err := job.Register(scheduler, cfg.Jobs.SalesExportCron); err != nil {
			log.Error("Failed to register sales export job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with sales export job",
				zap.String("cron_expr", cfg.Jobs.SalesExportCron),
				zap.Int("concurrency", cfg.Jobs.SalesExportConcurrency),
			)
			if cfg.Jobs.SalesExportOnStartup {
				go func() {
					if err := scheduler.RunNow(jobs.SalesExportJobName); err != nil {
						log.Error("Startup sales export failed", zap.Error(err))
					}
				}()
			}
		}
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           rt.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeoutDuration(),
		ReadHeaderTimeout: cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:      cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Failed to shutdown gracefully", zap.Error(err))
		return err
	}

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			log.Warn("Scheduler did not stop in time", zap.Error(err))
		} else {
			log.Info("Scheduler stopped")
		}
	}

	if dwClient != nil {
		if err := dwClient.Close(); err != nil {
			log.Warn("Error closing data warehouse connection", zap.Error(err))
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server stopped gracefully")
	return nil
}
