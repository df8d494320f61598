package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskplane/pkg/config"
	"taskplane/pkg/db"
	"taskplane/pkg/health"
	"taskplane/pkg/jobs"
	"taskplane/pkg/logger"
	"taskplane/pkg/redis"
	"taskplane/pkg/server"
	"taskplane/services/catalog"
	"taskplane/services/member"
	"taskplane/services/task"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		jobs.Client,
		jobs.Server,
		health.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		fx.Invoke(migrate),
		catalog.Module,
		member.Module,
		task.Module,
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

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalog.Product{},
		&member.Member{},
		&task.Task{},
	)
}
