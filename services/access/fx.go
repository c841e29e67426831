package access

import (
	"go.uber.org/fx"

	"gymgate/pkg/httpapi"
)

var Module = fx.Module("access.module",
	fx.Provide(NewService),
	httpapi.ProvideRoute(NewHandler),
)
