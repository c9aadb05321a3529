package ledgerservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var config = configpkg.Config{
	LedgerCurrency:    "SOL",
	ReferenceCurrency: "EUR",
	ReferenceRate:     "40",
	MinWithdrawal:     "0.13",
	MaxWithdrawal:     "50",
}

var caller = domain.Caller{UserID: "u1", Email: "member@example.com", Status: domain.UserStatusApproved}

type eqRecordParamsMatcher struct {
	arg domain.RecordEntryParams
}

func (e eqRecordParamsMatcher) Matches(x interface{}) bool {
	arg, ok := x.(domain.RecordEntryParams)
	if !ok {
		return false
	}

	return arg.UserID == e.arg.UserID &&
		arg.Kind == e.arg.Kind &&
		arg.Currency == e.arg.Currency &&
		arg.ReferenceCurrency == e.arg.ReferenceCurrency &&
		arg.Amount.Equal(e.arg.Amount) &&
		arg.Rate.Equal(e.arg.Rate)
}

func (e eqRecordParamsMatcher) String() string {
	return fmt.Sprintf("matches arg %v", e.arg)
}

func EqRecordParams(kind domain.EntryKind, amount string) gomock.Matcher {
	return eqRecordParamsMatcher{domain.RecordEntryParams{
		UserID:            caller.UserID,
		Kind:              kind,
		Amount:            decimal.RequireFromString(amount),
		Currency:          "SOL",
		ReferenceCurrency: "EUR",
		Rate:              decimal.NewFromInt(40),
	}}
}

func settingsWithCap(limit int64) domain.Settings {
	s := domain.DefaultSettings()
	s.MaxDepositPerUser = decimal.NewFromInt(limit)

	return s
}

func TestRecordDeposit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		caller     domain.Caller
		amount     any
		buildStubs func(repo *MockRepo, settings *MockSettingsReader)
		wantError  error
	}{
		{
			name:   "OK",
			caller: caller,
			amount: float64(100),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
				repo.EXPECT().
					Record(gomock.Any(), EqRecordParams(domain.EntryDeposit, "100")).
					Times(1).
					Return(domain.RecordResult{AcceptedAmount: decimal.NewFromInt(100)}, nil)
			},
		},
		{
			name:   "NumericString",
			caller: caller,
			amount: "12.5",
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
				repo.EXPECT().
					Record(gomock.Any(), EqRecordParams(domain.EntryDeposit, "12.5")).
					Times(1).
					Return(domain.RecordResult{}, nil)
			},
		},
		{
			name:   "AtCap",
			caller: caller,
			amount: float64(20000),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
				repo.EXPECT().
					Record(gomock.Any(), EqRecordParams(domain.EntryDeposit, "20000")).
					Times(1).
					Return(domain.RecordResult{}, nil)
			},
		},
		{
			name:   "NoCaller",
			amount: float64(100),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(0)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrUnauthorized,
		},
		{
			name:   "ZeroAmount",
			caller: caller,
			amount: float64(0),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(0)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:   "NotANumber",
			caller: caller,
			amount: "abc",
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(0)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:   "DepositCapExceeded",
			caller: caller,
			amount: float64(25000),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrDepositCapExceeded,
		},
		{
			name:   "StoredCapApplies",
			caller: caller,
			amount: float64(60),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(settingsWithCap(50), nil)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrDepositCapExceeded,
		},
		{
			name:   "SettingsUnavailable",
			caller: caller,
			amount: float64(10),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.Settings{}, domain.ErrStoreUnavailable)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrStoreUnavailable,
		},
		{
			name:   "InvalidAmountWhileSettingsUnavailable",
			caller: caller,
			amount: float64(-1),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).AnyTimes().Return(domain.Settings{}, domain.ErrStoreUnavailable)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:   "HugeExponent",
			caller: caller,
			amount: "1e100000000",
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(0)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:   "TinyExponent",
			caller: caller,
			amount: "1e-10000000",
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(0)
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			},
			wantError: domain.ErrInvalidAmount,
		},
		{
			name:   "RepoUnavailable",
			caller: caller,
			amount: float64(10),
			buildStubs: func(repo *MockRepo, settings *MockSettingsReader) {
				settings.EXPECT().Get(gomock.Any()).Times(1).Return(domain.DefaultSettings(), nil)
				repo.EXPECT().
					Record(gomock.Any(), EqRecordParams(domain.EntryDeposit, "10")).
					Times(1).
					Return(domain.RecordResult{}, domain.ErrStoreUnavailable)
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
			settings := NewMockSettingsReader(ctrl)
			tc.buildStubs(repo, settings)

			service := New(repo, settings, config)

			_, err := service.RecordDeposit(context.Background(), tc.caller, tc.amount)
			if !errors.Is(err, tc.wantError) {
				t.Fatalf("service.RecordDeposit(ctx, %v, %v) returned error %v, want %v",
					tc.caller, tc.amount, err, tc.wantError)
			}
		})
	}
}

func TestRecordWithdrawal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		amount     any
		wantRecord string
		wantError  error
	}{
		{name: "OK", amount: float64(10), wantRecord: "10"},
		{name: "Minimum", amount: float64(0.13), wantRecord: "0.13"},
		{name: "Maximum", amount: "50", wantRecord: "50"},
		{name: "TooSmall", amount: float64(0.10), wantError: domain.ErrWithdrawalTooSmall},
		{name: "TooLarge", amount: float64(50.01), wantError: domain.ErrWithdrawalTooLarge},
		{name: "Negative", amount: float64(-5), wantError: domain.ErrInvalidAmount},
		{name: "Bool", amount: true, wantError: domain.ErrInvalidAmount},
		{name: "NotANumber", amount: "abc", wantError: domain.ErrInvalidAmount},
		{name: "HugeExponent", amount: "1e100000000", wantError: domain.ErrInvalidAmount},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			settings := NewMockSettingsReader(ctrl)

			// Withdrawal limits come from config only.
			settings.EXPECT().Get(gomock.Any()).Times(0)

			want := domain.RecordResult{Status: domain.EntryStatusPendingApproval}

			if tc.wantRecord != "" {
				repo.EXPECT().
					Record(gomock.Any(), EqRecordParams(domain.EntryWithdrawal, tc.wantRecord)).
					Times(1).
					Return(want, nil)
			} else {
				repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)
			}

			service := New(repo, settings, config)

			got, err := service.RecordWithdrawal(context.Background(), caller, tc.amount)
			if !errors.Is(err, tc.wantError) {
				t.Fatalf("service.RecordWithdrawal(ctx, caller, %v) returned error %v, want %v",
					tc.amount, err, tc.wantError)
			}

			if tc.wantError == nil && got.Status != domain.EntryStatusPendingApproval {
				t.Errorf("got.Status = %q, want %q", got.Status, domain.EntryStatusPendingApproval)
			}
		})
	}
}

func TestRecordWithdrawalWhileSettingsUnavailable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	settings := NewMockSettingsReader(ctrl)

	settings.EXPECT().Get(gomock.Any()).AnyTimes().Return(domain.Settings{}, domain.ErrStoreUnavailable)
	repo.EXPECT().Record(gomock.Any(), gomock.Any()).Times(0)

	service := New(repo, settings, config)

	for amount, want := range map[any]error{
		"abc":       domain.ErrInvalidAmount,
		0.10:        domain.ErrWithdrawalTooSmall,
		float64(60): domain.ErrWithdrawalTooLarge,
	} {
		_, err := service.RecordWithdrawal(context.Background(), caller, amount)
		if !errors.Is(err, want) {
			t.Errorf("service.RecordWithdrawal(ctx, caller, %v) returned error %v, want %v", amount, err, want)
		}
	}
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}

	return &t
}

func TestList(t *testing.T) {
	t.Parallel()

	stored := []domain.Entry{
		{ID: "jan", CreatedAt: at("2025-01-15T10:00:00Z")},
		{ID: "legacy"},
		{ID: "mar-start", CreatedAt: at("2025-03-01T00:00:00Z")},
		{ID: "feb", CreatedAt: at("2025-02-10T12:00:00Z")},
		{ID: "mar-end", CreatedAt: at("2025-03-31T23:59:59Z")},
		{ID: "apr", CreatedAt: at("2025-04-01T00:00:00Z")},
	}

	testCases := []struct {
		name      string
		from      string
		to        string
		wantIDs   []string
		wantError error
	}{
		{
			name:    "All",
			wantIDs: []string{"apr", "mar-end", "mar-start", "feb", "jan", "legacy"},
		},
		{
			name:    "InclusiveRange",
			from:    "2025-03-01",
			to:      "2025-03-31",
			wantIDs: []string{"mar-end", "mar-start", "legacy"},
		},
		{
			name:    "FromOnly",
			from:    "2025-02-11",
			wantIDs: []string{"apr", "mar-end", "mar-start", "legacy"},
		},
		{
			name:    "ToOnly",
			to:      "2025-01-31",
			wantIDs: []string{"jan", "legacy"},
		},
		{
			name:      "InvalidFrom",
			from:      "03/01/2025",
			wantError: domain.ErrInvalidDateRange,
		},
		{
			name:      "InvalidTo",
			to:        "2025-13-01",
			wantError: domain.ErrInvalidDateRange,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			settings := NewMockSettingsReader(ctrl)

			if tc.wantError == nil {
				repo.EXPECT().List(gomock.Any(), gomock.Eq(caller.UserID)).Times(1).Return(stored, nil)
			} else {
				repo.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)
			}

			service := New(repo, settings, config)

			got, err := service.List(context.Background(), caller, tc.from, tc.to)
			if !errors.Is(err, tc.wantError) {
				t.Fatalf("service.List(ctx, caller, %q, %q) returned error %v, want %v",
					tc.from, tc.to, err, tc.wantError)
			}

			if tc.wantError != nil {
				return
			}

			gotIDs := make([]string, 0, len(got))
			for _, e := range got {
				gotIDs = append(gotIDs, e.ID)
			}

			if diff := cmp.Diff(tc.wantIDs, gotIDs); diff != "" {
				t.Errorf("service.List() ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListIsIdempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	settings := NewMockSettingsReader(ctrl)

	stored := []domain.Entry{
		{ID: "a", CreatedAt: at("2025-01-01T00:00:00Z")},
		{ID: "b", CreatedAt: at("2025-01-02T00:00:00Z")},
	}

	repo.EXPECT().List(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(context.Context, string) ([]domain.Entry, error) {
			return append([]domain.Entry(nil), stored...), nil
		})

	service := New(repo, settings, config)

	first, err := service.List(context.Background(), caller, "", "")
	if err != nil {
		t.Fatalf("service.List() returned error: %v", err)
	}

	second, err := service.List(context.Background(), caller, "", "")
	if err != nil {
		t.Fatalf("service.List() returned error: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated service.List() mismatch (-first +second):\n%s", diff)
	}
}

func TestListUnauthorized(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := New(NewMockRepo(ctrl), NewMockSettingsReader(ctrl), config)

	if _, err := service.List(context.Background(), domain.Caller{}, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("service.List() returned error %v, want %v", err, domain.ErrUnauthorized)
	}
}
