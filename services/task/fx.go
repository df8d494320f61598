package task

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(
		NewService,
		NewHandler,
		NewScheduler,
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterJobHandlers,
		StartScheduler,
	),
)

func RegisterJobHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TypeBatchRefresh, svc.HandleBatchRefresh)
}
