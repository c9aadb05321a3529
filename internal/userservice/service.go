// Package userservice manages business logic layer of users.
package userservice

import (
	"context"
	"errors"
	"strings"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/errorspkg"
	"github.com/go-petr/marketrush/pkg/passpkg"
	"github.com/rs/zerolog"
)

// FallbackEmail is reported for a profile that has no email anywhere.
const FallbackEmail = "member@example.com"

// Repo provides data access layer interface needed by user service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package userservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateUserParams) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// Service facilitates user service layer logic.
type Service struct {
	repo        Repo
	autoApprove bool
	admins      map[string]struct{}
}

// New return user service struct to manage user bussines logic.
func New(ur Repo, config configpkg.Config) *Service {
	admins := make(map[string]struct{})
	for _, email := range config.AdminEmailList() {
		admins[email] = struct{}{}
	}

	return &Service{
		repo:        ur,
		autoApprove: config.AutoApproveUsers,
		admins:      admins,
	}
}

// NormalizeEmail lower-cases and trims the email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers the user with zero aggregates.
func (s *Service) Create(ctx context.Context, email, password, username string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	hashedPassword, err := passpkg.Hash(password)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.User{}, errorspkg.ErrInternal
	}

	email = NormalizeEmail(email)

	status := domain.UserStatusPending
	if s.autoApprove {
		status = domain.UserStatusApproved
	}

	_, isAdmin := s.admins[email]

	arg := domain.CreateUserParams{
		Email:        email,
		Username:     strings.TrimSpace(username),
		PasswordHash: hashedPassword,
		Status:       status,
		IsAdmin:      isAdmin,
	}

	return s.repo.Create(ctx, arg)
}

// CheckPassword returns the user registered with the email if the password matches.
func (s *Service) CheckPassword(ctx context.Context, email, password string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrWrongPassword
		}

		return domain.User{}, err
	}

	if user.PasswordHash == "" {
		l.Error().Str("user_id", user.ID).Msg("user record without password hash")
		return domain.User{}, domain.ErrIncompleteUser
	}

	if err := passpkg.Check(password, user.PasswordHash); err != nil {
		l.Warn().Err(err).Send()
		return domain.User{}, domain.ErrWrongPassword
	}

	if user.Email == "" {
		user.Email = NormalizeEmail(email)
	}

	if user.Status == "" {
		user.Status = domain.UserStatusPending
	}

	return user, nil
}

// Profile returns the caller's user. Missing fields fall back to the token
// claims and then to fixed defaults.
func (s *Service) Profile(ctx context.Context, caller domain.Caller) (domain.User, error) {
	if caller.UserID == "" {
		return domain.User{}, domain.ErrUnauthorized
	}

	user, err := s.repo.Get(ctx, caller.UserID)
	if err != nil {
		return domain.User{}, err
	}

	if user.Email == "" {
		user.Email = caller.Email
	}

	if user.Email == "" {
		user.Email = FallbackEmail
	}

	if user.Status == "" {
		user.Status = caller.Status
	}

	if user.Status == "" {
		user.Status = domain.UserStatusPending
	}

	return user, nil
}
