package crawl

import (
	"context"

	"github.com/Kronixion/matval/internal/ingest"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("crawl",
	fx.Provide(providePipeline),
	fx.Provide(NewRunner),
	fx.Invoke(StartRunner),
)

func providePipeline(p *ingest.Pipeline) Processor {
	return p
}

// StartRunner runs one crawl in the background once the application started and shuts the
// application down when it finishes. Stopping the application cancels the run between
// items and waits for the workers to return.
func StartRunner(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *Runner, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			go func() {
				defer close(done)
				exitCode := 0
				if _, err := runner.Run(ctx); err != nil {
					log.Error("crawl run failed", zap.Error(err))
					exitCode = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(exitCode))
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
