// Package settingsrepo manages repository layer of the global settings.
package settingsrepo

import (
	"context"
	"errors"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/rs/zerolog"
)

// Ref addresses the global settings document.
var Ref = docstore.NewRef("settings", "global")

// Document field names.
const (
	FieldMaxDepositPerUser = "maxDepositPerUser"
	FieldGroups            = "groups"
	FieldRewardInterval    = "rewardInterval"
)

// Repo facilitates settings repository layer logic.
type Repo struct {
	store docstore.Store
}

// New returns settings Repo over the store.
func New(store docstore.Store) *Repo {
	return &Repo{store: store}
}

func storedGroups(f docstore.Fields) map[string]any {
	groups, _ := f[FieldGroups].(map[string]any)
	return groups
}

// decode overlays the stored fields on the default settings.
func decode(f docstore.Fields) domain.Settings {
	s := domain.DefaultSettings()

	if d := f.Decimal(FieldMaxDepositPerUser); d.IsPositive() {
		s.MaxDepositPerUser = d
	}

	for name, v := range storedGroups(f) {
		g, ok := v.(map[string]any)
		if !ok {
			continue
		}

		tier := docstore.Fields(g)
		s.Groups[name] = domain.Tier{
			MinPct: tier.Decimal("minPct"),
			MaxPct: tier.Decimal("maxPct"),
		}
	}

	if interval := f.Str(FieldRewardInterval); interval != "" {
		s.RewardInterval = interval
	}

	return s
}

// Get returns the current settings. Fields missing from the store keep their defaults.
func (r *Repo) Get(ctx context.Context) (domain.Settings, error) {
	f, err := r.store.Get(ctx, Ref)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.DefaultSettings(), nil
		}

		zerolog.Ctx(ctx).Error().Err(err).Msg("settings get")

		return domain.Settings{}, domain.ErrStoreUnavailable
	}

	return decode(f), nil
}

// Update merges the set fields of arg into the stored settings and returns
// the result. Groups are merged by name.
func (r *Repo) Update(ctx context.Context, arg domain.UpdateSettingsParams) (domain.Settings, error) {
	var updated domain.Settings

	_, err := r.store.Atomically(ctx, []docstore.Ref{Ref}, func(ctx context.Context, tx docstore.Tx) error {
		f, _, err := tx.Get(Ref)
		if err != nil {
			return err
		}

		changes := docstore.Fields{}

		if arg.MaxDepositPerUser != nil {
			changes[FieldMaxDepositPerUser] = arg.MaxDepositPerUser.String()
		}

		if len(arg.Groups) > 0 {
			groups := map[string]any{}
			for name, v := range storedGroups(f) {
				groups[name] = v
			}

			for name, tier := range arg.Groups {
				groups[name] = map[string]any{
					"minPct": tier.MinPct.String(),
					"maxPct": tier.MaxPct.String(),
				}
			}

			changes[FieldGroups] = groups
		}

		if arg.RewardInterval != nil {
			changes[FieldRewardInterval] = *arg.RewardInterval
		}

		merged := f.Clone()
		for k, v := range changes {
			merged[k] = v
		}

		updated = decode(merged)

		tx.Merge(Ref, changes)

		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("settings update")
		return domain.Settings{}, domain.ErrStoreUnavailable
	}

	return updated, nil
}
