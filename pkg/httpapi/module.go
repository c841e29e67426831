package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"gymgate/pkg/config"
	"gymgate/pkg/health"
	"gymgate/pkg/middleware"
)

// Registrar is implemented by every service handler that exposes routes.
type Registrar interface {
	Register(r *gin.RouterGroup)
}

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerHealthEndpoints, registerRoutes),
)

// ProvideRoute annotates a handler constructor into the route group.
func ProvideRoute(constructor any) fx.Option {
	return fx.Provide(
		fx.Annotate(
			constructor,
			fx.As(new(Registrar)),
			fx.ResultTags(`group:"routes"`),
		),
	)
}

func ProvideEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Error())
	return engine
}

func registerHealthEndpoints(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
}

type routesParams struct {
	fx.In
	Engine     *gin.Engine
	Registrars []Registrar `group:"routes"`
}

func registerRoutes(p routesParams) {
	v1 := p.Engine.Group("/v1")
	for _, r := range p.Registrars {
		r.Register(v1)
	}
}
