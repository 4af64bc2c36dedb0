package migration

import (
	"context"

	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, stores config.Stores, clk clock.Clock, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		if err := seed.EnsureCatalog(context.Background(), conn, stores, clk.Now()); err != nil {
			return err
		}
		log.Info("catalog schema ready", zap.Int("stores", len(stores)))
		return nil
	}),
)
