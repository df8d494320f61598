package member

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskplane/pkg/db/option"
	"taskplane/pkg/errutil"
	"taskplane/pkg/repository"
)

var ErrMemberNotFound = errutil.NotFound("member not found", nil)

type Service struct {
	db      *gorm.DB
	members repository.Repository[Member]
}

type Params struct {
	fx.In
	DB *gorm.DB
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		members: repository.ProvideStore[Member](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, memberID string) (*Member, error) {
	// gorm drops zero-value struct conditions; an empty id would match
	// the first row instead of none.
	if memberID == "" {
		return nil, ErrMemberNotFound
	}

	m, err := s.members.FindOne(ctx, &Member{ID: memberID})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// EnsureDailyQuota resolves the member's target batch size. An unset or
// zero quota falls back to the platform default, which is written back so
// subsequent allocations are stable.
func (s *Service) EnsureDailyQuota(ctx context.Context, memberID string, fallback int) (int, error) {
	m, err := s.Get(ctx, memberID)
	if err != nil {
		return 0, err
	}

	if m.DailyAvailableOrders > 0 {
		return m.DailyAvailableOrders, nil
	}

	if err := s.members.Update(ctx, m.ID, map[string]any{
		"daily_available_orders": fallback,
		"updated_at":             time.Now(),
	}); err != nil {
		return 0, err
	}

	zap.L().Info("defaulted daily order quota",
		zap.String("member_id", memberID),
		zap.Int("quota", fallback),
	)

	return fallback, nil
}

// ListActive returns the members the nightly refresh re-allocates.
func (s *Service) ListActive(ctx context.Context) ([]*Member, error) {
	return s.members.Find(ctx, &Member{Role: "user", Status: true})
}

// Accrue credits earnings against a member outside any caller transaction.
func (s *Service) Accrue(ctx context.Context, memberID string, earnings float64) (*EarningsSnapshot, error) {
	var snapshot *EarningsSnapshot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		snapshot, err = s.AccrueTx(ctx, tx, memberID, earnings)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// AccrueTx applies an earnings event inside the caller's transaction:
// totalEarnings and balance always accumulate, todaysEarnings accumulates
// only within the same calendar day and otherwise restarts at the new
// amount. LastEarningDate is kept truncated to local midnight so the
// rollover comparison is date-only.
func (s *Service) AccrueTx(ctx context.Context, tx *gorm.DB, memberID string, earnings float64) (*EarningsSnapshot, error) {
	if memberID == "" {
		return nil, ErrMemberNotFound
	}

	store := s.members.WithTrx(tx)

	m, err := store.FindOne(ctx, &Member{ID: memberID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}

	today := midnight(time.Now())

	todays := m.TodaysEarnings + earnings
	if m.LastEarningDate == nil || m.LastEarningDate.Before(today) {
		todays = earnings
	}

	updates := map[string]any{
		"balance":           m.Balance + earnings,
		"total_earnings":    m.TotalEarnings + earnings,
		"todays_earnings":   todays,
		"last_earning_date": today,
		"updated_at":        time.Now(),
	}

	if err := store.Update(ctx, m.ID, updates); err != nil {
		return nil, err
	}

	return &EarningsSnapshot{
		MemberID:        m.ID,
		Balance:         m.Balance + earnings,
		TotalEarnings:   m.TotalEarnings + earnings,
		TodaysEarnings:  todays,
		LastEarningDate: &today,
	}, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
