// Package sessionrepo manages repository layer of sessions.
package sessionrepo

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sessionsCollection = "sessions"

// Repo facilitates session repository layer logic.
type Repo struct {
	store docstore.Store
	now   func() time.Time
}

// New returns session Repo over the store.
func New(store docstore.Store) *Repo {
	return &Repo{
		store: store,
		now:   time.Now,
	}
}

// Ref returns the reference of the session document.
func Ref(id uuid.UUID) docstore.Ref {
	return docstore.NewRef(sessionsCollection, id.String())
}

// Create stores the session and then returns it.
func (r *Repo) Create(ctx context.Context, arg domain.Session) (domain.Session, error) {
	l := zerolog.Ctx(ctx)

	arg.CreatedAt = r.now().UTC()

	f := docstore.Fields{
		"userId":       arg.UserID,
		"email":        arg.Email,
		"status":       arg.Status,
		"isAdmin":      arg.IsAdmin,
		"refreshToken": arg.RefreshToken,
		"userAgent":    arg.UserAgent,
		"clientIp":     arg.ClientIP,
		"isBlocked":    arg.IsBlocked,
		"expiresAt":    docstore.FormatTime(arg.ExpiresAt),
		"createdAt":    docstore.FormatTime(arg.CreatedAt),
	}

	if err := r.store.Set(ctx, Ref(arg.ID), f); err != nil {
		l.Error().Err(err).Msg("session create")
		return domain.Session{}, domain.ErrStoreUnavailable
	}

	return arg, nil
}

// Get returns the session with the given id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	l := zerolog.Ctx(ctx)

	f, err := r.store.Get(ctx, Ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}

		l.Error().Err(err).Msg("session get")

		return domain.Session{}, domain.ErrStoreUnavailable
	}

	s := domain.Session{
		ID:           id,
		UserID:       f.Str("userId"),
		Email:        f.Str("email"),
		Status:       f.Str("status"),
		IsAdmin:      f.Bool("isAdmin"),
		RefreshToken: f.Str("refreshToken"),
		UserAgent:    f.Str("userAgent"),
		ClientIP:     f.Str("clientIp"),
		IsBlocked:    f.Bool("isBlocked"),
	}

	s.ExpiresAt, _ = f.Time("expiresAt")
	s.CreatedAt, _ = f.Time("createdAt")

	return s, nil
}
