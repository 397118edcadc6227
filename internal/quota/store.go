// Package quota enforces per-user daily request budgets.
//
// The budget is a soft limit: affordability is checked before a model
// invocation and consumption lands after it, with no lock held across the
// provider call. Consumption itself is a single conditional UPDATE, so
// concurrent consumers for one user can never push quota_used past
// quota_limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelarena/modelarena/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultDailyLimit is the request budget granted to new users.
const DefaultDailyLimit = 20

// ErrQuotaExceeded indicates the user has no budget left for the request.
var ErrQuotaExceeded = errors.New("quota: daily limit exceeded")

// Store persists per-user daily quotas in the database.
type Store struct {
	db           *gorm.DB
	defaultLimit int
	now          func() time.Time
}

// NewStore constructs a Store. A non-positive defaultLimit falls back to
// DefaultDailyLimit.
func NewStore(db *gorm.DB, defaultLimit int) *Store {
	if defaultLimit <= 0 {
		defaultLimit = DefaultDailyLimit
	}
	return &Store{db: db, defaultLimit: defaultLimit, now: time.Now}
}

func (s *Store) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// Ensure idempotently creates the user's quota row with the default limit and
// applies the lazy daily reset when the stored date is not today.
func (s *Store) Ensure(ctx context.Context, userID uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("quota: store not initialized")
	}
	today := s.today()

	row := models.User{
		ID:            userID,
		QuotaLimit:    s.defaultLimit,
		QuotaUsed:     0,
		LastResetDate: today,
	}
	if errCreate := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; errCreate != nil {
		return fmt.Errorf("quota: ensure user %d: %w", userID, errCreate)
	}

	if errReset := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND last_reset_date <> ?", userID, today).
		Updates(map[string]any{
			"quota_used":      0,
			"last_reset_date": today,
		}).Error; errReset != nil {
		return fmt.Errorf("quota: reset user %d: %w", userID, errReset)
	}
	return nil
}

// CanAfford reports whether the user's remaining budget covers cost. A
// non-positive cost is always affordable. Store faults fail closed.
func (s *Store) CanAfford(ctx context.Context, userID uint64, cost int) bool {
	if cost <= 0 {
		return true
	}
	if errEnsure := s.Ensure(ctx, userID); errEnsure != nil {
		log.WithError(errEnsure).Warn("quota: ensure failed, treating as unaffordable")
		return false
	}

	var row models.User
	if errFind := s.db.WithContext(ctx).
		Select("quota_limit", "quota_used").
		First(&row, userID).Error; errFind != nil {
		log.WithError(errFind).Warnf("quota: load user %d failed, treating as unaffordable", userID)
		return false
	}
	return row.QuotaLimit-row.QuotaUsed >= cost
}

// Consume atomically charges cost against the user's budget and reports
// whether the charge was applied. A non-positive cost succeeds without
// mutating state. The check and increment are one conditional UPDATE, so two
// concurrent calls can never both land when only one fits.
func (s *Store) Consume(ctx context.Context, userID uint64, cost int) bool {
	if cost <= 0 {
		return true
	}
	if errEnsure := s.Ensure(ctx, userID); errEnsure != nil {
		log.WithError(errEnsure).Warn("quota: ensure failed, consumption rejected")
		return false
	}

	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND quota_limit - quota_used >= ?", userID, cost).
		Update("quota_used", gorm.Expr("quota_used + ?", cost))
	if res.Error != nil {
		log.WithError(res.Error).Warnf("quota: consume for user %d failed", userID)
		return false
	}
	return res.RowsAffected > 0
}

// Info holds a user's current budget state.
type Info struct {
	Limit int
	Used  int
}

// GetInfo returns the user's budget after the ensure/reset step.
func (s *Store) GetInfo(ctx context.Context, userID uint64) (Info, error) {
	if errEnsure := s.Ensure(ctx, userID); errEnsure != nil {
		return Info{}, errEnsure
	}
	var row models.User
	if errFind := s.db.WithContext(ctx).
		Select("quota_limit", "quota_used").
		First(&row, userID).Error; errFind != nil {
		return Info{}, fmt.Errorf("quota: load user %d: %w", userID, errFind)
	}
	return Info{Limit: row.QuotaLimit, Used: row.QuotaUsed}, nil
}
