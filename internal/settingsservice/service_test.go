package settingsservice

import (
	"context"
	"errors"
	"testing"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
)

func TestUpdate(t *testing.T) {
	t.Parallel()

	admin := domain.Caller{UserID: "admin", IsAdmin: true}
	member := domain.Caller{UserID: "member"}

	limit := decimal.NewFromInt(1000)
	zero := decimal.Zero
	weekly := domain.RewardIntervalWeekly
	hourly := "hourly"

	testCases := []struct {
		name       string
		caller     domain.Caller
		arg        domain.UpdateSettingsParams
		buildStubs func(repo *MockRepo)
		wantError  error
	}{
		{
			name:   "OK",
			caller: admin,
			arg: domain.UpdateSettingsParams{
				MaxDepositPerUser: &limit,
				Groups: map[string]domain.Tier{
					"C": {MinPct: decimal.NewFromInt(1), MaxPct: decimal.NewFromInt(1)},
				},
				RewardInterval: &weekly,
			},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
			},
		},
		{
			name:   "EmptyUpdate",
			caller: admin,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
			},
		},
		{
			name:   "NoCaller",
			caller: domain.Caller{},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrUnauthorized,
		},
		{
			name:   "NotAdmin",
			caller: member,
			arg:    domain.UpdateSettingsParams{RewardInterval: &weekly},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrForbidden,
		},
		{
			name:   "NonPositiveCap",
			caller: admin,
			arg:    domain.UpdateSettingsParams{MaxDepositPerUser: &zero},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidSettings,
		},
		{
			name:   "InvertedTier",
			caller: admin,
			arg: domain.UpdateSettingsParams{Groups: map[string]domain.Tier{
				"A": {MinPct: decimal.NewFromInt(10), MaxPct: decimal.NewFromInt(5)},
			}},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidSettings,
		},
		{
			name:   "UnsupportedInterval",
			caller: admin,
			arg:    domain.UpdateSettingsParams{RewardInterval: &hourly},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidSettings,
		},
		{
			name:   "StoreUnavailable",
			caller: admin,
			arg:    domain.UpdateSettingsParams{RewardInterval: &weekly},
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Times(1).Return(domain.Settings{}, domain.ErrStoreUnavailable)
			},
			wantError: domain.ErrStoreUnavailable,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			_, err := New(repo).Update(context.Background(), tc.caller, tc.arg)
			if !errors.Is(err, tc.wantError) {
				t.Fatalf("service.Update(ctx, %v, %v) returned error %v, want %v", tc.caller, tc.arg, err, tc.wantError)
			}
		})
	}
}

func TestValidRewardInterval(t *testing.T) {
	t.Parallel()

	for _, interval := range []string{"daily", "weekly", "monthly"} {
		if !ValidRewardInterval(interval) {
			t.Errorf("ValidRewardInterval(%q) = false, want true", interval)
		}
	}

	for _, interval := range []string{"", "hourly", "Daily"} {
		if ValidRewardInterval(interval) {
			t.Errorf("ValidRewardInterval(%q) = true, want false", interval)
		}
	}
}
