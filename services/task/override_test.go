package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskplane/pkg/errutil"
	"taskplane/services/catalog"
)

func seedReplacement(t *testing.T, db *gorm.DB, id string, price float64) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&catalog.Product{
		ID:        id,
		Name:      id,
		Price:     price,
		Active:    true,
		IsTask:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
}

func TestReplaceSlotSwapsProduct(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 250)
	seedTask(t, db, &Task{
		ID:           "task-1",
		MemberID:     "member-1",
		ProductID:    "product-1",
		ProductPrice: 10,
		TaskNumber:   3,
	})

	updated, err := svc.ReplaceSlot(context.Background(), "member-1", 3, "replacement", 0.08)
	require.NoError(t, err)
	require.Equal(t, "replacement", updated.ProductID)
	require.Equal(t, 250.0, updated.ProductPrice)
	require.Equal(t, 0.08, updated.Percentage)
	require.True(t, updated.IsEdited)
	require.Equal(t, 3, updated.TaskNumber)
	require.Equal(t, StatusPending, updated.Status)

	var stored Task
	require.NoError(t, db.First(&stored, "id = ?", "task-1").Error)
	require.Equal(t, "replacement", stored.ProductID)
	require.Equal(t, 250.0, stored.ProductPrice)
	require.True(t, stored.IsEdited)
}

func TestReplaceSlotUnknownNumber(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 250)

	_, err := svc.ReplaceSlot(context.Background(), "member-1", 9, "replacement", 0)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusNotFound, base.Code)
}

func TestReplaceSlotCompletedTaskIsImmutable(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 250)
	seedTask(t, db, &Task{
		ID:           "task-1",
		MemberID:     "member-1",
		ProductID:    "product-1",
		ProductPrice: 10,
		TaskNumber:   1,
		Status:       StatusCompleted,
	})

	_, err := svc.ReplaceSlot(context.Background(), "member-1", 1, "replacement", 0)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusConflict, base.Code)

	var stored Task
	require.NoError(t, db.First(&stored, "id = ?", "task-1").Error)
	require.Equal(t, "product-1", stored.ProductID)
	require.False(t, stored.IsEdited)
}

func TestReplaceSlotUnknownProduct(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedTask(t, db, &Task{
		ID:           "task-1",
		MemberID:     "member-1",
		ProductID:    "product-1",
		ProductPrice: 10,
		TaskNumber:   1,
	})

	_, err := svc.ReplaceSlot(context.Background(), "member-1", 1, "missing", 0)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusNotFound, base.Code)
}

func TestReplaceOldestUpdatesOldestRows(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 99)

	base := time.Now().Add(-3 * time.Hour)
	for i := 0; i < 3; i++ {
		seedTask(t, db, &Task{
			ID:           "task-" + string(rune('a'+i)),
			MemberID:     "member-1",
			ProductID:    "product-1",
			ProductPrice: 10,
			TaskNumber:   i + 1,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
	}

	updated, err := svc.ReplaceOldest(context.Background(), "member-1", "replacement", 2)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	require.Equal(t, "task-a", updated[0].ID)
	require.Equal(t, "task-b", updated[1].ID)
	for _, task := range updated {
		require.Equal(t, "replacement", task.ProductID)
		require.Equal(t, 99.0, task.ProductPrice)
		require.True(t, task.IsEdited)
	}

	// the newest row was left alone
	var newest Task
	require.NoError(t, db.First(&newest, "id = ?", "task-c").Error)
	require.Equal(t, "product-1", newest.ProductID)
	require.False(t, newest.IsEdited)
}

func TestReplaceOldestTieBreaksByTaskNumber(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 99)

	// one batch insert stamps every row with the same created_at
	createdAt := time.Now().Truncate(time.Second)
	for i := 1; i <= 3; i++ {
		seedTask(t, db, &Task{
			ID:           fmt.Sprintf("task-%d", i),
			MemberID:     "member-1",
			ProductID:    "product-1",
			ProductPrice: 10,
			TaskNumber:   i,
			CreatedAt:    createdAt,
		})
	}

	updated, err := svc.ReplaceOldest(context.Background(), "member-1", "replacement", 2)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	require.Equal(t, 1, updated[0].TaskNumber)
	require.Equal(t, 2, updated[1].TaskNumber)

	var last Task
	require.NoError(t, db.First(&last, "id = ?", "task-3").Error)
	require.False(t, last.IsEdited)
}

func TestReplaceOldestInvalidCount(t *testing.T) {
	svc, _ := newTestService(t)

	for _, count := range []int{0, -3} {
		_, err := svc.ReplaceOldest(context.Background(), "member-1", "replacement", count)
		require.Error(t, err)

		var base errutil.BaseError
		require.True(t, errors.As(err, &base))
		require.Equal(t, errutil.StatusValidationFailed, base.Code)
	}
}

func TestReplaceOldestNoTasks(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedReplacement(t, db, "replacement", 99)

	_, err := svc.ReplaceOldest(context.Background(), "member-1", "replacement", 2)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusNotFound, base.Code)
}
