package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/listing"
	obslogger "github.com/Kronixion/matval/internal/observability/logger"
	obstracing "github.com/Kronixion/matval/internal/observability/tracing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Writer   *listing.Writer
	Gatherer prometheus.Gatherer `optional:"true"`
	Clock    clock.Clock         `optional:"true"`
	Log      *zap.Logger
}

// Server exposes the operational surface of a worker process: liveness, metrics, and
// read-only listing queries.
type Server struct {
	engine *gin.Engine
	db     *gorm.DB
	writer *listing.Writer
	clock  clock.Clock
	log    *zap.Logger
}

func NewServer(p Params) *Server {
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}

	s := &Server{db: p.DB, writer: p.Writer, clock: clk, log: log.Named("server")}
	s.engine = NewEngine(log, gatherer)
	s.routes()
	return s
}

func NewEngine(log *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) routes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/stores/:store/stale", s.StaleListings)
	s.engine.GET("/listings/:id/history", s.ListingHistory)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		AbortWithError(c, errors.Join(ErrServiceUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("ops server stopped", zap.String("addr", cfg.OpsAddr), zap.Error(err))
				}
			}()
			s.log.Info("ops server listening", zap.String("addr", cfg.OpsAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
