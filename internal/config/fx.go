package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(provideStores),
)

func provideStores(cfg Config) (Stores, error) {
	return LoadStores(cfg.Ingest.StoresConfig)
}
