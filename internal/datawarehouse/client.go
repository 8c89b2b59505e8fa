// Package datawarehouse writes monthly sales figures to the MS SQL Server reporting warehouse.
// The warehouse is optional; a nil *Client behaves as disabled.
package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/salescrm/crm-api/internal/config"
	"github.com/salescrm/crm-api/internal/domain"
	"go.uber.org/zap"
)

const (
	// Default retry configuration for connection attempts
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
	defaultTable              = "dbo.crm_monthly_sales"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Client writes to the MS SQL Server data warehouse.
// It manages connection pooling and bounds every statement with the query timeout.
type Client struct {
	db           *sql.DB
	table        string
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the data warehouse connection
type HealthStatus struct {
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
	MaxOpen    int           `json:"max_open_connections"`
	Open       int           `json:"open_connections"`
	InUse      int           `json:"in_use"`
	Idle       int           `json:"idle"`
	WaitCount  int64         `json:"wait_count"`
	WaitTimeMs int64         `json:"wait_time_ms"`
}

// NewClient creates a new data warehouse client with the given configuration.
// Returns nil if the data warehouse is not enabled or not configured.
// The client establishes a connection pool with retry logic for transient failures.
func NewClient(cfg *config.WarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse export disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing data warehouse connection",
		zap.String("table", table),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("conn_max_lifetime_seconds", cfg.ConnMaxLifetime),
		zap.Int("query_timeout_seconds", cfg.QueryTimeout),
	)

	connStr := BuildConnectionString(cfg)

	var db *sql.DB
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		logger.Info("Attempting data warehouse connection",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)

		db, err = sql.Open("sqlserver", connStr)
		if err != nil {
			logger.Warn("Failed to open data warehouse connection",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.Warn("Data warehouse ping failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			_ = db.Close()
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		logger.Info("Data warehouse connection established successfully",
			zap.Int("attempts_taken", attempt),
		)

		return &Client{
			db:           db,
			table:        table,
			logger:       logger,
			queryTimeout: cfg.QueryTimeoutDuration(),
		}, nil
	}

	return nil, fmt.Errorf("failed to connect to data warehouse after %d attempts: %w", defaultMaxRetries, err)
}

// BuildConnectionString constructs a SQL Server connection string from the config.
// URL format expected: host:port/database or host:port (uses default database)
func BuildConnectionString(cfg *config.WarehouseConfig) string {
	urlParts := strings.SplitN(cfg.URL, "/", 2)
	hostPort := urlParts[0]
	database := ""
	if len(urlParts) > 1 {
		database = urlParts[1]
	}

	hostParts := strings.SplitN(hostPort, ":", 2)
	host := hostParts[0]
	port := "1433"
	if len(hostParts) > 1 {
		port = hostParts[1]
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}

	return u.String()
}

// tableName validates the configured table, which is interpolated into statements
func tableName(name string) (string, error) {
	if name == "" {
		return defaultTable, nil
	}
	if !tableNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid warehouse table name %q", name)
	}
	return name, nil
}

// Close gracefully closes the data warehouse connection.
// Should be called during application shutdown.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	c.logger.Info("Closing data warehouse connection")

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close data warehouse connection", zap.Error(err))
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}

	c.logger.Info("Data warehouse connection closed successfully")
	return nil
}

// HealthCheck performs a health check on the data warehouse connection.
// Returns detailed status including connection pool statistics.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{
			Status: "disabled",
		}
	}

	start := time.Now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Latency:    latency,
		MaxOpen:    stats.MaxOpenConnections,
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitTimeMs: stats.WaitDuration.Milliseconds(),
	}

	if err != nil {
		c.logger.Warn("Data warehouse health check failed",
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		status.Status = "unhealthy"
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
	}

	return status
}

// UpsertMonthlySales writes one row per month for the tenant, replacing earlier figures
// for the same month. All rows are written in a single transaction.
func (c *Client) UpsertMonthlySales(ctx context.Context, tenantID uuid.UUID, tenantSlug string, months []domain.MonthlySales, exportedAt time.Time) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("data warehouse client not initialized")
	}
	if len(months) == 0 {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin warehouse transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, MonthlySalesMergeStatement(c.table))
	if err != nil {
		return fmt.Errorf("failed to prepare warehouse statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range months {
		_, err := stmt.ExecContext(ctx,
			sql.Named("tenant_id", tenantID.String()),
			sql.Named("tenant_slug", tenantSlug),
			sql.Named("month", m.Month),
			sql.Named("value", m.Value),
			sql.Named("count", m.Count),
			sql.Named("exported_at", exportedAt.UTC()),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert month %s: %w", m.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit warehouse transaction: %w", err)
	}

	c.logger.Debug("Monthly sales written to data warehouse",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("rows", len(months)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// MonthlySalesMergeStatement returns the MERGE statement upserting one month of a tenant into table
func MonthlySalesMergeStatement(table string) string {
	return fmt.Sprintf(`MERGE %s WITH (HOLDLOCK) AS target
USING (SELECT @tenant_id AS tenant_id, @month AS month_label) AS source
ON target.tenant_id = source.tenant_id AND target.month_label = source.month_label
WHEN MATCHED THEN
	UPDATE SET tenant_slug = @tenant_slug, won_value = @value, won_count = @count, exported_at = @exported_at
WHEN NOT MATCHED THEN
	INSERT (tenant_id, tenant_slug, month_label, won_value, won_count, exported_at)
	VALUES (@tenant_id, @tenant_slug, @month, @value, @count, @exported_at);`, table)
}

// IsEnabled returns true if the client is initialized and ready for writes.
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}
