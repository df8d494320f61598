package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNextRunTimeLaterToday(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)

	next := nextRunTime(now, 1, 0)
	require.Equal(t, time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC), next)
}

func TestNextRunTimeRollsToTomorrow(t *testing.T) {
	now := time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC)

	next := nextRunTime(now, 1, 0)
	require.Equal(t, time.Date(2025, 6, 11, 1, 0, 0, 0, time.UTC), next)
}

func TestHandleBatchRefreshReallocates(t *testing.T) {
	svc, db := newTestService(t)
	seedMember(t, db, "member-1", 4)
	seedProducts(t, db, 1, 2, 3, 4, 5, 6)

	payload, err := json.Marshal(refreshPayload{MemberID: "member-1"})
	require.NoError(t, err)

	err = svc.HandleBatchRefresh(context.Background(), asynq.NewTask(TypeBatchRefresh, payload))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&Task{}).Where("member_id = ?", "member-1").Count(&count).Error)
	require.EqualValues(t, 4, count)
}

func TestHandleBatchRefreshBadPayload(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.HandleBatchRefresh(context.Background(), asynq.NewTask(TypeBatchRefresh, []byte("not-json")))
	require.Error(t, err)
}
