package main

import (
	"github.com/Kronixion/matval/internal/cache"
	"github.com/Kronixion/matval/internal/catalog"
	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/crawl"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/internal/ingest"
	"github.com/Kronixion/matval/internal/listing"
	"github.com/Kronixion/matval/internal/migration"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/Kronixion/matval/internal/observability"
	"github.com/Kronixion/matval/internal/server"
	"github.com/Kronixion/matval/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		catalog.Module,
		cache.Module,
		migration.Module,
		server.Module,

		// Pipeline
		normalize.Module,
		identity.Module,
		listing.Module,
		ingest.Module,
		crawl.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
