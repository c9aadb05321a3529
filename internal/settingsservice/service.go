// Package settingsservice manages business logic layer of the global settings.
package settingsservice

import (
	"context"
	"fmt"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by settings service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package settingsservice
type Repo interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, arg domain.UpdateSettingsParams) (domain.Settings, error)
}

// Service facilitates settings service layer logic.
type Service struct {
	repo Repo
}

// New returns settings service struct to manage settings business logic.
func New(sr Repo) *Service {
	return &Service{repo: sr}
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

// ValidRewardInterval reports whether interval is a supported reward interval.
func ValidRewardInterval(interval string) bool {
	switch interval {
	case domain.RewardIntervalDaily, domain.RewardIntervalWeekly, domain.RewardIntervalMonthly:
		return true
	}

	return false
}

func validate(arg domain.UpdateSettingsParams) error {
	if arg.MaxDepositPerUser != nil && !arg.MaxDepositPerUser.IsPositive() {
		return fmt.Errorf("%w: maxDepositPerUser must be positive", domain.ErrInvalidSettings)
	}

	for name, tier := range arg.Groups {
		if name == "" {
			return fmt.Errorf("%w: group name is empty", domain.ErrInvalidSettings)
		}

		if tier.MinPct.IsNegative() || tier.MaxPct.LessThan(tier.MinPct) {
			return fmt.Errorf("%w: group %s needs 0 <= minPct <= maxPct", domain.ErrInvalidSettings, name)
		}
	}

	if arg.RewardInterval != nil && !ValidRewardInterval(*arg.RewardInterval) {
		return fmt.Errorf("%w: unsupported reward interval %q", domain.ErrInvalidSettings, *arg.RewardInterval)
	}

	return nil
}

// Update applies a partial settings update on behalf of an admin caller.
func (s *Service) Update(ctx context.Context, caller domain.Caller, arg domain.UpdateSettingsParams) (domain.Settings, error) {
	l := zerolog.Ctx(ctx)

	if caller.UserID == "" {
		return domain.Settings{}, domain.ErrUnauthorized
	}

	if !caller.IsAdmin {
		l.Warn().Str("user_id", caller.UserID).Msg("settings update by non admin")
		return domain.Settings{}, domain.ErrForbidden
	}

	if err := validate(arg); err != nil {
		l.Info().Err(err).Send()
		return domain.Settings{}, err
	}

	return s.repo.Update(ctx, arg)
}
