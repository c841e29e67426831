package plan

import (
	"go.uber.org/fx"

	"gymgate/pkg/httpapi"
)

var Module = fx.Module("plan.module",
	fx.Provide(NewService),
	httpapi.ProvideRoute(NewHandler),
)
