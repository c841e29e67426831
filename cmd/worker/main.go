package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"gymgate/pkg/clock"
	"gymgate/pkg/config"
	"gymgate/pkg/db"
	"gymgate/pkg/logger"
	"gymgate/pkg/task"
	"gymgate/services/membership"
)

// The worker runs the asynq consumer and the cron scheduler: the nightly
// membership finalize sweep lives here, off the request path.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		clock.Module,
		fx.Provide(provideSnowflakeNode),
		task.Server,
		task.Scheduler,
		membership.Worker,
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

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
