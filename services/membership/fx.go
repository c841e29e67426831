package membership

import (
	"go.uber.org/fx"

	"gymgate/pkg/httpapi"
)

var Module = fx.Module("membership.module",
	fx.Provide(NewService),
	httpapi.ProvideRoute(NewHandler),
)

// Worker wires the service into the asynq mux and scheduler instead of
// the HTTP surface.
var Worker = fx.Module("membership.worker",
	fx.Provide(NewService),
	fx.Invoke(RegisterTaskHandlers, RegisterPeriodicTasks),
)
