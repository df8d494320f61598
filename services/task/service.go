package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskplane/pkg/config"
	"taskplane/pkg/db/option"
	"taskplane/pkg/errutil"
	"taskplane/pkg/repository"
	"taskplane/services/catalog"
	"taskplane/services/member"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  config.TasksConfig
	rdb  *redis.Client

	catalog *catalog.Service
	members *member.Service
	tasks   repository.Repository[Task]

	locks keyedMutex
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config
	Redis   *redis.Client `optional:"true"`
	Catalog *catalog.Service
	Members *member.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		cfg:     p.Config.Tasks,
		rdb:     p.Redis,
		catalog: p.Catalog,
		members: p.Members,
		tasks:   repository.ProvideStore[Task](p.DB),
	}
}

// keyedMutex serializes mutating operations per member. Batch reset and
// submission interleaving would otherwise race on the delete-then-insert
// window.
type keyedMutex struct {
	mu sync.Map
}

func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.mu.LoadOrStore(key, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// requireMemberID rejects an empty member id before it reaches a query.
// Repository lookups build struct conditions and gorm drops zero values,
// so an empty id would match every member's rows instead of none.
func requireMemberID(memberID string) error {
	if memberID == "" {
		return errutil.BadRequest("member id is required", nil)
	}
	return nil
}

// Allocate builds the member's daily batch: resolve the quota (defaulting
// and persisting it when unset), pick a price-banded selection from the
// eligible pool and recreate the task list in one transaction.
func (s *Service) Allocate(ctx context.Context, memberID string) (*BatchResult, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(memberID)
	defer unlock()

	target, err := s.members.EnsureDailyQuota(ctx, memberID, s.cfg.DailyOrderDefault)
	if err != nil {
		return nil, err
	}

	pool, err := s.catalog.TaskPool(ctx)
	if err != nil {
		return nil, err
	}

	selection := catalog.SelectBanded(pool, target, catalog.Band{
		Low:  s.cfg.PriceBandLow,
		High: s.cfg.PriceBandHigh,
	})

	if selection.BandViolated {
		zap.L().Warn("price band not satisfied, batch filled best effort",
			zap.String("member_id", memberID),
			zap.Int("batch_size", len(selection.Products)),
			zap.Float64("total_price", selection.TotalPrice),
			zap.Float64("band_low", s.cfg.PriceBandLow),
			zap.Float64("band_high", s.cfg.PriceBandHigh),
		)
	}

	var created []*Task
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.createBatch(ctx, tx, memberID, selection.Products)
		return err
	}); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, memberID)

	result := &BatchResult{
		Tasks:        created,
		TotalTasks:   len(created),
		TotalPrice:   selection.TotalPrice,
		BandViolated: selection.BandViolated,
	}
	if len(created) > 0 {
		result.AveragePrice = selection.TotalPrice / float64(len(created))
	}

	zap.L().Info("assigned daily batch",
		zap.String("member_id", memberID),
		zap.Int("total_tasks", result.TotalTasks),
		zap.Float64("total_price", result.TotalPrice),
		zap.Float64("average_price", result.AveragePrice),
	)

	return result, nil
}

// AllocateRandom rebuilds the batch from an unconstrained random draw,
// the ad-hoc path used when the price band does not apply. A non-positive
// count falls back to the configured default.
func (s *Service) AllocateRandom(ctx context.Context, memberID string, count int) (*BatchResult, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(memberID)
	defer unlock()

	if count <= 0 {
		count = s.cfg.RandomPickDefault
	}

	if _, err := s.members.Get(ctx, memberID); err != nil {
		return nil, err
	}

	pool, err := s.catalog.TaskPool(ctx)
	if err != nil {
		return nil, err
	}

	products := catalog.SelectRandom(pool, count)

	var created []*Task
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.createBatch(ctx, tx, memberID, products)
		return err
	}); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, memberID)

	var total float64
	for _, t := range created {
		total += t.ProductPrice
	}

	result := &BatchResult{
		Tasks:      created,
		TotalTasks: len(created),
		TotalPrice: total,
	}
	if len(created) > 0 {
		result.AveragePrice = total / float64(len(created))
	}

	zap.L().Info("assigned random batch",
		zap.String("member_id", memberID),
		zap.Int("total_tasks", result.TotalTasks),
		zap.Float64("total_price", result.TotalPrice),
	)

	return result, nil
}

// Reallocate clears and rebuilds the batch. Allocate already resets the
// previous batch inside its transaction, so a repeat call is a pure
// reset-and-recreate with no partial state.
func (s *Service) Reallocate(ctx context.Context, memberID string) (*BatchResult, error) {
	return s.Allocate(ctx, memberID)
}

// createBatch deletes the member's stale tasks and inserts the new numbered
// batch. The delete must complete before the insert begins or task numbers
// would collide with the surviving rows.
func (s *Service) createBatch(ctx context.Context, tx *gorm.DB, memberID string, products []*catalog.Product) ([]*Task, error) {
	store := s.tasks.WithTrx(tx)

	if err := store.Delete(ctx, &Task{MemberID: memberID}); err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]*Task, 0, len(products))
	for i, p := range products {
		rows = append(rows, &Task{
			ID:           s.node.Generate().String(),
			MemberID:     memberID,
			ProductID:    p.ID,
			ProductPrice: p.Price,
			TaskNumber:   i + 1,
			Status:       StatusPending,
			Percentage:   0,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := store.BatchCreate(ctx, rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// Status returns the batch ordered by task number plus its counts.
func (s *Service) Status(ctx context.Context, memberID string) (*StatusResult, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.Find(ctx, &Task{MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "task_number",
			OrderBy: "asc",
			Allow: map[string]bool{
				"task_number": true,
			},
		}),
	)
	if err != nil {
		return nil, err
	}

	stats, err := s.countStats(ctx, memberID)
	if err != nil {
		return nil, err
	}

	return &StatusResult{Tasks: tasks, Stats: *stats}, nil
}

func (s *Service) invalidateStats(ctx context.Context, memberID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, statsCacheKey(memberID)).Err(); err != nil {
		zap.L().Warn("failed to invalidate stats cache", zap.String("member_id", memberID), zap.Error(err))
	}
}

func statsCacheKey(memberID string) string {
	return fmt.Sprintf("tasks:stats:%s", memberID)
}
