package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/listing"
	"github.com/Kronixion/matval/internal/observability/logger"
	"github.com/Kronixion/matval/internal/observability/metrics"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	runResultOK     = "ok"
	runResultFailed = "failed"
	runResultAbsent = "absent"
)

type Params struct {
	fx.In

	Config        config.Config
	Stores        config.Stores
	DB            *gorm.DB
	Processor     Processor
	Writer        *listing.Writer
	Clock         clock.Clock
	Metrics       *metrics.Metrics       `optional:"true"`
	IngestMetrics *metrics.IngestMetrics `optional:"true"`
	Log           *zap.Logger
}

// Runner crawls every configured store concurrently, one sequential worker per store.
type Runner struct {
	inputDir      string
	stores        []string
	db            *gorm.DB
	processor     Processor
	writer        *listing.Writer
	clock         clock.Clock
	metrics       *metrics.Metrics
	ingestMetrics *metrics.IngestMetrics
	log           *zap.Logger
}

func NewRunner(p Params) *Runner {
	stores := p.Config.Ingest.Stores
	if len(stores) == 0 {
		stores = p.Stores.Names()
	}
	return &Runner{
		inputDir:      p.Config.Ingest.InputDir,
		stores:        stores,
		db:            p.DB,
		processor:     p.Processor,
		writer:        p.Writer,
		clock:         p.Clock,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
		log:           p.Log.Named("crawl.runner"),
	}
}

// Run processes <input dir>/<store>.jsonl for every store. A store that fails does not stop
// the others; the first fatal error is returned after all workers finished.
func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	logger.WithContext(ctx, r.log).Info("crawl run started",
		zap.Strings("stores", r.stores),
		zap.String("input_dir", r.inputDir),
	)

	reports := make([]Report, len(r.stores))
	var g errgroup.Group
	for i, store := range r.stores {
		g.Go(func() error {
			reports[i] = r.runStore(ctx, runID, store)
			return reports[i].Err
		})
	}
	err := g.Wait()

	for _, rep := range reports {
		logger.WithContext(ctx, r.log).Info("store crawl finished",
			zap.String("store", rep.Store),
			zap.Int("lines", rep.Lines),
			zap.Int("acked", rep.Acked),
			zap.Int("rejected", rep.Rejected),
			zap.Int("decode_errors", rep.DecodeErrors),
			zap.Int("history_entries", rep.History),
			zap.Int64("stale_listings", rep.Stale),
			zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
			zap.Error(rep.Err),
		)
	}
	return reports, err
}

func (r *Runner) runStore(ctx context.Context, runID, store string) Report {
	ctx = logger.ContextWithStore(ctx, store)
	report := Report{Store: store, RunID: runID, StartedAt: r.clock.Now()}

	path := filepath.Join(r.inputDir, store+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.WithContext(ctx, r.log).Warn("no crawl output for store", zap.String("path", path))
			r.metrics.RecordCrawlRun(ctx, store, runResultAbsent)
			report.FinishedAt = r.clock.Now()
			return report
		}
		report.Err = fmt.Errorf("%s: open input: %w", store, err)
		r.metrics.RecordCrawlRun(ctx, store, runResultFailed)
		report.FinishedAt = r.clock.Now()
		return report
	}
	defer f.Close()

	worker := NewWorker(store, r.processor, r.ingestMetrics, r.log)
	if err := worker.Run(ctx, f, &report); err != nil {
		report.Err = err
		r.metrics.RecordCrawlRun(ctx, store, runResultFailed)
		report.FinishedAt = r.clock.Now()
		return report
	}

	stale, err := r.writer.StaleListings(ctx, r.db.WithContext(ctx), store, report.StartedAt)
	if err != nil {
		logger.WithContext(ctx, r.log).Warn("stale listing count failed", zap.Error(err))
	} else {
		report.Stale = stale
		r.ingestMetrics.SetStaleListings(store, stale)
	}
	r.metrics.RecordCrawlRun(ctx, store, runResultOK)
	report.FinishedAt = r.clock.Now()
	return report
}
