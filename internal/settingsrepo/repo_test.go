package settingsrepo

import (
	"context"
	"testing"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/go-petr/marketrush/pkg/docstore/memstore"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var equateDecimal = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestGetDefaults(t *testing.T) {
	t.Parallel()

	repo := New(memstore.New())

	got, err := repo.Get(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(domain.DefaultSettings(), got, equateDecimal); diff != "" {
		t.Errorf("repo.Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOverlaysStoredFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	repo := New(store)

	require.NoError(t, store.Set(ctx, Ref, docstore.Fields{
		FieldMaxDepositPerUser: float64(500),
		FieldGroups: map[string]any{
			"B": map[string]any{"minPct": float64(1), "maxPct": "2"},
		},
	}))

	got, err := repo.Get(ctx)
	require.NoError(t, err)

	want := domain.DefaultSettings()
	want.MaxDepositPerUser = decimal.NewFromInt(500)
	want.Groups["B"] = domain.Tier{MinPct: decimal.NewFromInt(1), MaxPct: decimal.NewFromInt(2)}

	if diff := cmp.Diff(want, got, equateDecimal); diff != "" {
		t.Errorf("repo.Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	repo := New(store)

	limit := decimal.NewFromInt(1000)

	got, err := repo.Update(ctx, domain.UpdateSettingsParams{MaxDepositPerUser: &limit})
	require.NoError(t, err)
	require.Equal(t, "1000", got.MaxDepositPerUser.String())
	require.Equal(t, domain.RewardIntervalDaily, got.RewardInterval)

	weekly := domain.RewardIntervalWeekly

	got, err = repo.Update(ctx, domain.UpdateSettingsParams{
		Groups: map[string]domain.Tier{
			"C": {MinPct: decimal.NewFromInt(40), MaxPct: decimal.NewFromInt(50)},
		},
		RewardInterval: &weekly,
	})
	require.NoError(t, err)

	// Earlier updates survive later partial ones.
	require.Equal(t, "1000", got.MaxDepositPerUser.String())
	require.Equal(t, domain.RewardIntervalWeekly, got.RewardInterval)
	require.Len(t, got.Groups, 3)

	read, err := repo.Get(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(got, read, equateDecimal); diff != "" {
		t.Errorf("repo.Get() after Update mismatch (-want +got):\n%s", diff)
	}

	f, err := store.Get(ctx, Ref)
	require.NoError(t, err)
	require.Len(t, storedGroups(f), 1)
}
