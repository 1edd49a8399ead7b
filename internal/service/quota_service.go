package service

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/repository"
)

var (
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	ErrUserNotFound  = errors.New("user not found")
)

type QuotaService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewQuotaService(userRepo *repository.UserRepository, cfg *config.Config) *QuotaService {
	return &QuotaService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// GetQuotaInfo returns the user's tier and usage.
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.getUser(userID)
	if err != nil {
		return nil, err
	}
	return s.BuildQuotaInfo(user), nil
}

// BuildQuotaInfo summarises an already loaded user.
func (s *QuotaService) BuildQuotaInfo(user *model.User) *dto.QuotaInfo {
	info := &dto.QuotaInfo{
		Tier:             user.SubscriptionTier,
		GenerationsUsed:  user.GenerationsUsed,
		GenerationsLimit: user.GenerationsLimit,
		BonusGenerations: user.BonusGenerations,
		TotalLimit:       user.TotalLimit(),
		Remaining:        user.RemainingGenerations(),
		CanGenerate:      user.GenerationsUsed < user.TotalLimit(),
		ScriptsEnabled:   Tier(user.SubscriptionTier).AllowsScripts(),
		ContentStreak:    user.ContentStreak,
	}
	if user.LastContentDate != nil {
		info.LastContentDate = user.LastContentDate.Format(time.RFC3339)
	}
	return info
}

// CheckQuota reports whether the user may start another generation.
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.getUser(userID)
	if err != nil {
		return false, err
	}
	return user.GenerationsUsed < user.TotalLimit(), nil
}

// UseQuota consumes one generation, failing with ErrQuotaExceeded when none
// are left.
func (s *QuotaService) UseQuota(userID int64) error {
	ok, err := s.userRepo.IncrementUsed(userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

// RefundQuota returns a generation consumed by a failed request.
func (s *QuotaService) RefundQuota(userID int64) error {
	return s.userRepo.DecrementUsed(userID)
}

// ApplyTier re-derives tier, limit and status from the user's tags in
// memory. It reports whether anything changed.
func (s *QuotaService) ApplyTier(user *model.User) bool {
	tier := ResolveTier(user.Tags, s.cfg.Subscription.Tiers)
	limit := s.cfg.Subscription.Limit(string(tier))

	status := model.SubscriptionInactive
	if tier != model.TierFree {
		status = model.SubscriptionActive
	}
	if user.SubscriptionEndDate != nil && user.SubscriptionEndDate.Before(time.Now()) {
		status = model.SubscriptionExpired
	}

	changed := user.SubscriptionTier != string(tier) ||
		user.GenerationsLimit != limit ||
		user.SubscriptionStatus != status

	user.SubscriptionTier = string(tier)
	user.GenerationsLimit = limit
	user.SubscriptionStatus = status
	return changed
}

// Reconcile applies the tag-derived tier and persists it when it changed.
func (s *QuotaService) Reconcile(user *model.User) error {
	previous := user.SubscriptionTier
	if !s.ApplyTier(user) {
		return nil
	}

	if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"subscription_tier":   user.SubscriptionTier,
		"generations_limit":   user.GenerationsLimit,
		"subscription_status": user.SubscriptionStatus,
	}); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
		"from":    previous,
		"to":      user.SubscriptionTier,
		"limit":   user.GenerationsLimit,
	}).Info("subscription tier reconciled")
	return nil
}

// ResetMonthly zeroes usage for every user and burns bonus generations that
// were spent beyond the tier allowance.
func (s *QuotaService) ResetMonthly() (int64, error) {
	affected, err := s.userRepo.ResetAllMonthly()
	if err != nil {
		return 0, err
	}
	log.WithField("users", affected).Info("monthly quota reset")
	return affected, nil
}

// TouchStreak records content activity on now's calendar day.
func (s *QuotaService) TouchStreak(user *model.User, now time.Time) error {
	streak := NextStreak(user.ContentStreak, user.LastContentDate, now)
	user.ContentStreak = streak
	user.LastContentDate = &now
	return s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"content_streak":    streak,
		"last_content_date": now,
	})
}

// NextStreak computes the streak after activity at now, comparing UTC dates.
func NextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}

	today := truncateDay(now)
	lastDay := truncateDay(*last)
	switch {
	case today.Equal(lastDay):
		if current < 1 {
			return 1
		}
		return current
	case today.Equal(lastDay.AddDate(0, 0, 1)):
		return current + 1
	default:
		return 1
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *QuotaService) getUser(userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
