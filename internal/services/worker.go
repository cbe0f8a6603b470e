package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/a-abukar/cv-review-generator/internal/metrics"
	"github.com/a-abukar/cv-review-generator/internal/models"
	"github.com/a-abukar/cv-review-generator/internal/repositories"
)

// AuditWorker persists request audits off the request path.
type AuditWorker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(audit models.RequestAudit) bool
}

type AuditWorkerOptions struct {
	Concurrency   int
	QueueSize     int
	Retention     time.Duration
	PruneInterval time.Duration
}

type auditWorker struct {
	repo     repositories.AuditRepository
	opts     AuditWorkerOptions
	metrics  *metrics.Metrics
	logger   *slog.Logger
	queue    chan models.RequestAudit
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewAuditWorker(repo repositories.AuditRepository, opts AuditWorkerOptions, m *metrics.Metrics, logger *slog.Logger) AuditWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &auditWorker{
		repo:     repo,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		queue:    make(chan models.RequestAudit, opts.QueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start implements AuditWorker.
func (w *auditWorker) Start(ctx context.Context) {
	w.logger.Info("🚀 Starting audit worker", "workers", w.opts.Concurrency)

	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.processAudits(ctx, i+1)
	}

	if w.opts.Retention > 0 && w.opts.PruneInterval > 0 {
		w.wg.Add(1)
		go w.pruneExpired(ctx)
	}

	w.logger.Info("✅ Audit worker started successfully")
}

// Stop implements AuditWorker. Queued audits are flushed before it returns.
func (w *auditWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("🛑 Stopping audit worker...")
		close(w.stopChan)
		w.wg.Wait()
		w.drain()
		w.logger.Info("✅ Audit worker stopped")
	})
}

// Enqueue implements AuditWorker. It never blocks; a full queue drops the audit.
func (w *auditWorker) Enqueue(audit models.RequestAudit) bool {
	select {
	case <-w.stopChan:
		return false
	default:
	}

	select {
	case w.queue <- audit:
		return true
	default:
		w.metrics.IncAuditDropped()
		w.logger.Warn("⚠️ Audit queue full, dropping record", "feature", audit.Feature, "status", audit.Status)
		return false
	}
}

func (w *auditWorker) processAudits(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case audit := <-w.queue:
			w.persist(workerID, audit)
		}
	}
}

func (w *auditWorker) persist(workerID int, audit models.RequestAudit) {
	if err := w.repo.Create(&audit); err != nil {
		w.logger.Error("❌ Failed to persist audit", "worker", workerID, "error", err)
	}
}

func (w *auditWorker) drain() {
	for {
		select {
		case audit := <-w.queue:
			w.persist(0, audit)
		default:
			return
		}
	}
}

func (w *auditWorker) pruneExpired(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.DeleteOlderThan(time.Now().Add(-w.opts.Retention))
			if err != nil {
				w.logger.Warn("⚠️ Failed to prune audits", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Info("🧹 Pruned expired audits", "removed", n)
			}
		}
	}
}
