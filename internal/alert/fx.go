package alert

import "go.uber.org/fx"

var Module = fx.Module("alert.engine",
	fx.Provide(NewEngine),
)
