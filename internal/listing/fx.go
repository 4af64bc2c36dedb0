package listing

import "go.uber.org/fx"

var Module = fx.Module("listing",
	fx.Provide(New),
)
