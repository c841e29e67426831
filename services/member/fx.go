package member

import (
	"go.uber.org/fx"

	"gymgate/pkg/httpapi"
)

var Module = fx.Module("member.module",
	fx.Provide(NewService),
	httpapi.ProvideRoute(NewHandler),
)
