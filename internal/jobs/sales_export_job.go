package jobs

import (
	"context"
	"time"

	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

// SalesExportJobName is the scheduler name of the nightly sales export
const SalesExportJobName = "sales_export"

// SalesExporter exports the sales snapshot of every tenant
type SalesExporter interface {
	ExportAll(ctx context.Context) (*service.ExportResult, error)
}

// SalesExportJob runs one export of all tenants per tick
type SalesExportJob struct {
	exporter SalesExporter
	logger   *zap.Logger
	timeout  time.Duration
}

// NewSalesExportJob creates the export job. Each run is cancelled after timeout.
func NewSalesExportJob(exporter SalesExporter, logger *zap.Logger, timeout time.Duration) *SalesExportJob {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SalesExportJob{
		exporter: exporter,
		logger:   logger,
		timeout:  timeout,
	}
}

// Run is called by the scheduler
func (j *SalesExportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.exporter.ExportAll(ctx)
	if result == nil {
		j.logger.Error("sales export failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}

	fields := []zap.Field{
		zap.Int("tenants", result.Tenants),
		zap.Int("exported", result.Exported),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		j.logger.Warn("sales export completed with failures", append(fields, zap.Error(err))...)
		return
	}
	j.logger.Info("sales export completed", fields...)
}

// Register adds the job to scheduler on cronExpr
func (j *SalesExportJob) Register(scheduler *Scheduler, cronExpr string) error {
	return scheduler.AddJob(SalesExportJobName, cronExpr, j.Run)
}
