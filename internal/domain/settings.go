package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidSettings indicates a settings update that violates the settings rules.
var ErrInvalidSettings = errors.New("invalid settings")

// Reward intervals.
const (
	RewardIntervalDaily   = "daily"
	RewardIntervalWeekly  = "weekly"
	RewardIntervalMonthly = "monthly"
)

// Tier is a reward group percentage band.
type Tier struct {
	MinPct decimal.Decimal `json:"minPct"`
	MaxPct decimal.Decimal `json:"maxPct"`
}

// Settings holds the global reward configuration.
type Settings struct {
	MaxDepositPerUser decimal.Decimal `json:"maxDepositPerUser"`
	Groups            map[string]Tier `json:"groups"`
	RewardInterval    string          `json:"rewardInterval"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		MaxDepositPerUser: decimal.NewFromInt(20000),
		Groups: map[string]Tier{
			"A": {MinPct: decimal.NewFromInt(5), MaxPct: decimal.NewFromInt(10)},
			"B": {MinPct: decimal.NewFromInt(20), MaxPct: decimal.NewFromInt(30)},
		},
		RewardInterval: RewardIntervalDaily,
	}
}

// UpdateSettingsParams is a partial settings update. Nil fields are left as is.
type UpdateSettingsParams struct {
	MaxDepositPerUser *decimal.Decimal
	Groups            map[string]Tier
	RewardInterval    *string
}
