package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskplane/pkg/config"
	"taskplane/pkg/errutil"
	"taskplane/services/catalog"
	"taskplane/services/member"
	"taskplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &catalog.Product{}, &member.Member{}, &Task{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Tasks = config.TasksConfig{
		DailyOrderDefault:     4,
		PriceBandLow:          10,
		PriceBandHigh:         12,
		DefaultCommissionRate: 0.005,
		RandomPickDefault:     3,
		StatsCacheTTL:         30 * time.Second,
	}

	svc := NewService(ServiceParams{
		DB:      db,
		Node:    node,
		Config:  cfg,
		Catalog: catalog.NewService(catalog.Params{DB: db}),
		Members: member.NewService(member.Params{DB: db}),
	})

	return svc, db
}

func seedMember(t *testing.T, db *gorm.DB, id string, quota int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&member.Member{
		ID:                   id,
		Role:                 "user",
		Status:               true,
		DailyAvailableOrders: quota,
		CreatedAt:            now,
		UpdatedAt:            now,
	}).Error)
}

func seedProducts(t *testing.T, db *gorm.DB, prices ...float64) {
	t.Helper()
	now := time.Now()
	for i, price := range prices {
		require.NoError(t, db.Create(&catalog.Product{
			ID:        fmt.Sprintf("product-%d", i+1),
			Name:      fmt.Sprintf("Product %d", i+1),
			Price:     price,
			Active:    true,
			IsTask:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error)
	}
}

func TestAllocateCreatesNumberedBatch(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6, 7, 8)

	result, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalTasks)
	require.Equal(t, 10.0, result.TotalPrice)
	require.Equal(t, 2.5, result.AveragePrice)
	require.False(t, result.BandViolated)

	for i, task := range result.Tasks {
		require.Equal(t, i+1, task.TaskNumber)
		require.Equal(t, "member-1", task.MemberID)
		require.Equal(t, StatusPending, task.Status)
		require.NotEmpty(t, task.ID)
	}
}

func TestAllocateDefaultsAndPersistsQuota(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 0)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6)

	result, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalTasks)

	var stored member.Member
	require.NoError(t, db.First(&stored, "id = ?", "member-1").Error)
	require.Equal(t, 4, stored.DailyAvailableOrders)
}

func TestAllocateUnknownMember(t *testing.T) {
	svc, db := newTestService(t)
	seedProducts(t, db, 1, 2, 3)

	_, err := svc.Allocate(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, errors.Is(err, member.ErrMemberNotFound))
}

func TestAllocateEmptyPool(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)

	_, err := svc.Allocate(context.Background(), "member-1")
	require.Error(t, err)
	require.True(t, errors.Is(err, catalog.ErrNoEligibleProducts))
}

func TestAllocateSkipsInactiveProducts(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 2)
	seedProducts(t, db, 5, 6)

	now := time.Now()
	require.NoError(t, db.Create(&catalog.Product{
		ID: "inactive", Name: "Inactive", Price: 1, Active: false, IsTask: true,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&catalog.Product{
		ID: "not-task", Name: "Not a task", Price: 1, Active: true, IsTask: false,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	result, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)
	for _, task := range result.Tasks {
		require.NotContains(t, []string{"inactive", "not-task"}, task.ProductID)
	}
}

func TestReallocateRebuildsBatch(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6, 7, 8)

	first, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)

	firstIDs := map[string]bool{}
	for _, task := range first.Tasks {
		firstIDs[task.ID] = true
	}

	second, err := svc.Reallocate(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, 4, second.TotalTasks)

	var count int64
	require.NoError(t, db.Model(&Task{}).Where("member_id = ?", "member-1").Count(&count).Error)
	require.EqualValues(t, 4, count)

	for i, task := range second.Tasks {
		require.Equal(t, i+1, task.TaskNumber)
		require.False(t, firstIDs[task.ID], "old batch row survived the reset")
	}
}

func TestAllocateRandomUsesDefaultCount(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6, 7, 8)

	result, err := svc.AllocateRandom(context.Background(), "member-1", 0)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalTasks)

	for i, task := range result.Tasks {
		require.Equal(t, i+1, task.TaskNumber)
		require.Equal(t, StatusPending, task.Status)
	}
}

func TestAllocateRandomExplicitCount(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6, 7, 8)

	result, err := svc.AllocateRandom(context.Background(), "member-1", 6)
	require.NoError(t, err)
	require.Equal(t, 6, result.TotalTasks)

	seen := map[string]bool{}
	for _, task := range result.Tasks {
		require.False(t, seen[task.ProductID], "product %s assigned twice", task.ProductID)
		seen[task.ProductID] = true
	}
}

func TestStatusOrdersByTaskNumber(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6)

	_, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), "member-1")
	require.NoError(t, err)
	require.Len(t, status.Tasks, 4)
	for i, task := range status.Tasks {
		require.Equal(t, i+1, task.TaskNumber)
	}
	require.EqualValues(t, 4, status.Stats.TotalTasks)
	require.EqualValues(t, 0, status.Stats.CompletedTasks)
	require.EqualValues(t, 4, status.Stats.PendingTasks)
}

func TestEmptyMemberIDIsRejected(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 2)
	seedMember(t, db, "member-2", 2)
	seedProducts(t, db, 1, 2, 3, 4)

	_, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)
	_, err = svc.Allocate(context.Background(), "member-2")
	require.NoError(t, err)

	// an empty id must never widen the query to other members' rows
	_, err = svc.Status(context.Background(), "")
	require.Error(t, err)
	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusBadRequest, base.Code)

	_, err = svc.Stats(context.Background(), "")
	require.Error(t, err)

	_, err = svc.Allocate(context.Background(), "")
	require.Error(t, err)

	_, err = svc.AllocateRandom(context.Background(), "", 2)
	require.Error(t, err)

	_, err = svc.ReplaceSlot(context.Background(), "", 1, "product-1", 0)
	require.Error(t, err)

	_, err = svc.ReplaceOldest(context.Background(), "", "product-1", 1)
	require.Error(t, err)

	// both batches intact
	var count int64
	require.NoError(t, db.Model(&Task{}).Count(&count).Error)
	require.EqualValues(t, 4, count)
}

func TestStatsCountIdentity(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6)

	result, err := svc.Allocate(context.Background(), "member-1")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), result.Tasks[0].ID, 5, "fine", nil)
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), "member-1")
	require.NoError(t, err)
	require.EqualValues(t, 4, stats.TotalTasks)
	require.EqualValues(t, 1, stats.CompletedTasks)
	require.EqualValues(t, 3, stats.PendingTasks)
	require.Equal(t, stats.TotalTasks, stats.CompletedTasks+stats.PendingTasks)
}
