package crawl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Kronixion/matval/internal/ingest"
	"github.com/Kronixion/matval/internal/listing"
	"github.com/Kronixion/matval/internal/observability/logger"
	"github.com/Kronixion/matval/internal/observability/metrics"
	"github.com/Kronixion/matval/internal/source"
	"go.uber.org/zap"
)

// maxLineSize bounds one JSON record; product pages with nutrition tables stay well below it.
const maxLineSize = 4 << 20

// Processor handles one raw item.
type Processor interface {
	Process(ctx context.Context, item source.Item) (ingest.Outcome, error)
}

// Report summarises one store's crawl.
type Report struct {
	Store        string
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Lines        int
	Acked        int
	Rejected     int
	DecodeErrors int
	Outcomes     map[listing.Outcome]int
	Rejections   map[ingest.Reason]int
	History      int
	Stale        int64
	Err          error
}

// Worker feeds one store's raw items to the pipeline strictly in order.
type Worker struct {
	store     string
	processor Processor
	metrics   *metrics.IngestMetrics
	log       *zap.Logger
}

func NewWorker(store string, processor Processor, m *metrics.IngestMetrics, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		store:     store,
		processor: processor,
		metrics:   m,
		log:       log.Named("crawl.worker"),
	}
}

// Run reads JSON lines from r until EOF. Lines that fail to decode and items the pipeline
// rejects are counted and skipped. Run stops early only when ctx is done or the pipeline
// reports a fatal error; every item handled before that point stays committed.
func (w *Worker) Run(ctx context.Context, r io.Reader, report *Report) error {
	ctx = logger.ContextWithStore(ctx, w.store)
	log := logger.WithContext(ctx, w.log)
	if report.Outcomes == nil {
		report.Outcomes = map[listing.Outcome]int{}
	}
	if report.Rejections == nil {
		report.Rejections = map[ingest.Reason]int{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		report.Lines++

		item, err := source.Decode(w.store, line)
		if err != nil {
			report.DecodeErrors++
			w.metrics.IncDecodeError(w.store)
			log.Warn("undecodable line", zap.Int("line", report.Lines), zap.Error(err))
			continue
		}

		out, err := w.processor.Process(ctx, item)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", w.store, report.Lines, err)
		}
		switch out.Status {
		case ingest.StatusAck:
			report.Acked++
			report.Outcomes[out.Result.Outcome]++
			if out.Result.HistoryRecorded {
				report.History++
			}
		default:
			report.Rejected++
			report.Rejections[out.Reason]++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: read input: %w", w.store, err)
	}
	return nil
}
