// Package userrepo manages repository layer of users.
//
// A user lives at users/{id}. The emails/{email} index maps an email to its
// user and is written in the same atomic unit as the user, which keeps
// emails unique.
package userrepo

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/internal/ledgerrepo"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/rs/zerolog"
)

const (
	usersCollection  = "users"
	emailsCollection = "emails"
)

// Repo facilitates user repository layer logic.
type Repo struct {
	store docstore.Store
	now   func() time.Time
}

// New returns user Repo over the store.
func New(store docstore.Store) *Repo {
	return &Repo{
		store: store,
		now:   time.Now,
	}
}

// EmailRef returns the index reference of the email.
func EmailRef(email string) docstore.Ref {
	return docstore.NewRef(emailsCollection, url.PathEscape(email))
}

// UserRef returns the reference of the user document.
func UserRef(id string) docstore.Ref {
	return docstore.NewRef(usersCollection, id)
}

func userFields(u domain.User) docstore.Fields {
	f := docstore.Fields{
		"email":                        u.Email,
		"passwordHash":                 u.PasswordHash,
		"status":                       u.Status,
		"isAdmin":                      u.IsAdmin,
		"createdAt":                    docstore.FormatTime(u.CreatedAt),
		ledgerrepo.FieldTotalDeposits:  u.TotalDeposits.String(),
		ledgerrepo.FieldTotalWithdrawn: u.TotalWithdrawn.String(),
		"totalRewards":                 u.TotalRewards.String(),
	}

	if u.Username != "" {
		f["username"] = u.Username
	}

	return f
}

func decodeUser(id string, f docstore.Fields) domain.User {
	u := domain.User{
		ID:             id,
		Email:          f.Str("email"),
		Username:       f.Str("username"),
		PasswordHash:   f.Str("passwordHash"),
		Status:         f.Str("status"),
		IsAdmin:        f.Bool("isAdmin"),
		TotalDeposits:  f.Decimal(ledgerrepo.FieldTotalDeposits),
		TotalWithdrawn: f.Decimal(ledgerrepo.FieldTotalWithdrawn),
		TotalRewards:   f.Decimal("totalRewards"),
	}

	if t, ok := f.Time("createdAt"); ok {
		u.CreatedAt = t
	}

	return u
}

// Create creates the user with zero aggregates together with its email index.
func (r *Repo) Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	emailRef := EmailRef(arg.Email)
	userRef := r.store.NewRef(usersCollection)

	u := domain.User{
		ID:           userRef.ID,
		Email:        arg.Email,
		Username:     arg.Username,
		PasswordHash: arg.PasswordHash,
		Status:       arg.Status,
		IsAdmin:      arg.IsAdmin,
		CreatedAt:    r.now().UTC(),
	}

	_, err := r.store.Atomically(ctx, []docstore.Ref{emailRef}, func(ctx context.Context, tx docstore.Tx) error {
		_, exists, err := tx.Get(emailRef)
		if err != nil {
			return err
		}

		if exists {
			return domain.ErrEmailAlreadyExists
		}

		tx.Set(userRef, userFields(u))
		tx.Set(emailRef, docstore.Fields{"userId": u.ID, "email": u.Email})

		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			l.Info().Err(err).Send()
			return domain.User{}, err
		}

		l.Error().Err(err).Msg("user create")

		return domain.User{}, domain.ErrStoreUnavailable
	}

	return u, nil
}

// Get returns the user with the given id.
func (r *Repo) Get(ctx context.Context, id string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	ref := UserRef(id)
	if !ref.Valid() {
		return domain.User{}, domain.ErrUserNotFound
	}

	f, err := r.store.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}

		l.Error().Err(err).Str("user_id", id).Msg("user get")

		return domain.User{}, domain.ErrStoreUnavailable
	}

	return decodeUser(id, f), nil
}

// GetByEmail returns the user registered with the email.
func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	idx, err := r.store.Get(ctx, EmailRef(email))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidRef) {
			return domain.User{}, domain.ErrUserNotFound
		}

		l.Error().Err(err).Msg("email index get")

		return domain.User{}, domain.ErrStoreUnavailable
	}

	return r.Get(ctx, idx.Str("userId"))
}
