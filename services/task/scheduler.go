package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"taskplane/pkg/config"
	"taskplane/services/member"
)

// TypeBatchRefresh re-allocates one member's daily batch.
const TypeBatchRefresh = "tasks:batch:refresh"

type refreshPayload struct {
	MemberID string `json:"member_id"`
}

type Scheduler struct {
	service *Service
	members *member.Service
	asynq   *asynq.Client
	hour    int
}

type SchedulerParams struct {
	fx.In
	Service *Service
	Members *member.Service
	Asynq   *asynq.Client
	Config  *config.Config
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		service: p.Service,
		members: p.Members,
		asynq:   p.Asynq,
		hour:    p.Config.Tasks.RefreshHour,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started daily batch refresh scheduler", zap.Int("hour", s.hour))

	for {
		now := time.Now()
		next := nextRunTime(now, s.hour, 0)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] enqueueing batch refresh jobs")

	if err := s.EnqueueAllRefreshJobs(ctx); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue refresh jobs", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] finished enqueueing refresh jobs",
		zap.Duration("duration", time.Since(start)),
	)
}

// EnqueueAllRefreshJobs queues one refresh job per active member. Each job
// is independent so one member's failure never blocks the rest.
func (s *Scheduler) EnqueueAllRefreshJobs(ctx context.Context) error {
	members, err := s.members.ListActive(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, m := range members {
		payload, _ := json.Marshal(refreshPayload{MemberID: m.ID})
		if _, err := s.asynq.Enqueue(asynq.NewTask(TypeBatchRefresh, payload), asynq.Queue("low")); err != nil {
			zap.L().Error("failed to enqueue batch refresh",
				zap.String("member_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	zap.L().Info("batch refresh jobs enqueued", zap.Int("members", enqueued))
	return nil
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// HandleBatchRefresh is the asynq worker side of the nightly refresh.
func (s *Service) HandleBatchRefresh(ctx context.Context, t *asynq.Task) error {
	var payload refreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid batch refresh payload", zap.Error(err))
		return err
	}

	if _, err := s.Reallocate(ctx, payload.MemberID); err != nil {
		zap.L().Error("failed to refresh batch",
			zap.String("member_id", payload.MemberID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
