package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskplane/pkg/db/option"
	"taskplane/pkg/errutil"
)

// ReplaceSlot splices a new product into the slot identified by task
// number. The slot keeps its number and status; price is re-snapshotted
// from the replacement product. Completed slots are immutable.
func (s *Service) ReplaceSlot(ctx context.Context, memberID string, taskNumber int, productID string, percentage float64) (*Task, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(memberID)
	defer unlock()

	t, err := s.tasks.FindOne(ctx, &Task{MemberID: memberID, TaskNumber: taskNumber})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errutil.NotFound("task not found", nil)
	}
	if t.Status == StatusCompleted {
		return nil, errutil.Conflict("task already completed", nil)
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, t.ID, map[string]any{
		"product_id":    product.ID,
		"product_price": product.Price,
		"percentage":    percentage,
		"is_edited":     true,
		"updated_at":    time.Now(),
	}); err != nil {
		return nil, err
	}

	zap.L().Info("task slot replaced",
		zap.String("member_id", memberID),
		zap.Int("task_number", taskNumber),
		zap.String("product_id", product.ID),
		zap.Float64("percentage", percentage),
	)

	t.ProductID = product.ID
	t.ProductPrice = product.Price
	t.Percentage = percentage
	t.IsEdited = true

	return t, nil
}

// ReplaceOldest overwrites the count oldest tasks with the given product.
// The row updates are independent and run concurrently.
func (s *Service) ReplaceOldest(ctx context.Context, memberID string, productID string, count int) ([]*Task, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errutil.ValidationFailed("count must be greater than zero", nil,
			errutil.WithDetails(errutil.Detail{Field: "count", Message: "must be greater than 0"}))
	}

	unlock := s.locks.Lock(memberID)
	defer unlock()

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	// rows created in one batch share a timestamp, so break ties by
	// task number to keep "oldest" deterministic
	tasks, err := s.tasks.Find(ctx, &Task{MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "asc",
			Allow: map[string]bool{
				"created_at": true,
			},
		}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "task_number",
			OrderBy: "asc",
			Allow: map[string]bool{
				"task_number": true,
			},
		}),
		option.WithLimit(count),
	)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, errutil.NotFound("no tasks to replace", nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			return s.tasks.Update(gctx, t.ID, map[string]any{
				"product_id":    product.ID,
				"product_price": product.Price,
				"is_edited":     true,
				"updated_at":    time.Now(),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		t.ProductID = product.ID
		t.ProductPrice = product.Price
		t.IsEdited = true
	}

	return tasks, nil
}
