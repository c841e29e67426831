package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"gymgate/pkg/clock"
	"gymgate/pkg/config"
	"gymgate/pkg/db"
	"gymgate/pkg/health"
	"gymgate/pkg/httpapi"
	"gymgate/pkg/logger"
	"gymgate/pkg/redis"
	"gymgate/pkg/sequence"
	"gymgate/pkg/server"
	"gymgate/pkg/task"
	"gymgate/services/access"
	"gymgate/services/member"
	"gymgate/services/membership"
	"gymgate/services/plan"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		clock.Module,
		health.Module,
		fx.Provide(
			provideTracerProvider,
			provideSnowflakeNode,
		),
		fx.Invoke(db.Otel, db.Metric),
		plan.Module,
		member.Module,
		membership.Module,
		access.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
