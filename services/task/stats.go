package task

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stats serves the dashboard read path: three counts, cached briefly in
// redis so polling dashboards stay off the database.
func (s *Service) Stats(ctx context.Context, memberID string) (*Stats, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, statsCacheKey(memberID)).Bytes(); err == nil {
			var stats Stats
			if err := json.Unmarshal(cached, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.countStats(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		payload, _ := json.Marshal(stats)
		if err := s.rdb.Set(ctx, statsCacheKey(memberID), payload, s.cfg.StatsCacheTTL).Err(); err != nil {
			zap.L().Warn("failed to cache stats", zap.String("member_id", memberID), zap.Error(err))
		}
	}

	return stats, nil
}

// countStats runs the three aggregate counts concurrently; they touch
// disjoint aggregates and share no mutable state.
func (s *Service) countStats(ctx context.Context, memberID string) (*Stats, error) {
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := s.tasks.Count(gctx, &Task{MemberID: memberID})
		stats.TotalTasks = total
		return err
	})
	g.Go(func() error {
		completed, err := s.tasks.Count(gctx, &Task{MemberID: memberID, Status: StatusCompleted})
		stats.CompletedTasks = completed
		return err
	})
	g.Go(func() error {
		pending, err := s.tasks.Count(gctx, &Task{MemberID: memberID, Status: StatusPending})
		stats.PendingTasks = pending
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &stats, nil
}
