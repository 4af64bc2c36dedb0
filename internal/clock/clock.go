package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so timestamps written by the pipeline are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System returns a Clock backed by time.Now in UTC.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

var Module = fx.Module("clock",
	fx.Provide(System),
)
