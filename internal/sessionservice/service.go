// Package sessionservice manages business logic layer of sessions.
package sessionservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/errorspkg"
	"github.com/go-petr/marketrush/pkg/tokenpkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by session service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package sessionservice
type Repo interface {
	Create(ctx context.Context, arg domain.Session) (domain.Session, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Session, error)
}

// Service facilitates session service layer logic.
type Service struct {
	repo       Repo
	tokenMaker tokenpkg.Maker
	config     configpkg.Config
}

// New returns session service struct to manage session bussines logic.
func New(sr Repo, config configpkg.Config, tm tokenpkg.Maker) (*Service, error) {
	if tm == nil {
		return nil, errors.New("token maker is required")
	}

	if config.AccessTokenDuration <= 0 || config.RefreshTokenDuration <= 0 {
		return nil, errors.New("token durations must be positive")
	}

	return &Service{
		repo:       sr,
		tokenMaker: tm,
		config:     config,
	}, nil
}

func subjectOf(userID, email, status string, isAdmin bool) tokenpkg.Subject {
	return tokenpkg.Subject{
		UserID:  userID,
		Email:   email,
		Status:  status,
		IsAdmin: isAdmin,
	}
}

// Create issues an access token and a refresh token for the user and stores
// the refresh token as a new session.
func (s *Service) Create(ctx context.Context, arg domain.CreateSessionParams) (string, time.Time, domain.Session, error) {
	l := zerolog.Ctx(ctx)

	sub := subjectOf(arg.User.ID, arg.User.Email, arg.User.Status, arg.User.IsAdmin)

	accessToken, accessPayload, err := s.tokenMaker.CreateToken(sub, s.config.AccessTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return "", time.Time{}, domain.Session{}, errorspkg.ErrInternal
	}

	refreshToken, refreshPayload, err := s.tokenMaker.CreateToken(sub, s.config.RefreshTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return "", time.Time{}, domain.Session{}, errorspkg.ErrInternal
	}

	sess, err := s.repo.Create(ctx, domain.Session{
		ID:           refreshPayload.ID,
		UserID:       arg.User.ID,
		Email:        arg.User.Email,
		Status:       arg.User.Status,
		IsAdmin:      arg.User.IsAdmin,
		RefreshToken: refreshToken,
		UserAgent:    arg.UserAgent,
		ClientIP:     arg.ClientIP,
		ExpiresAt:    refreshPayload.ExpiredAt,
	})
	if err != nil {
		return "", time.Time{}, domain.Session{}, err
	}

	return accessToken, accessPayload.ExpiredAt, sess, nil
}

// RenewAccessToken issues a new access token for the session of refreshToken.
func (s *Service) RenewAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	l := zerolog.Ctx(ctx)

	refreshPayload, err := s.tokenMaker.VerifyToken(refreshToken)
	if err != nil {
		l.Info().Err(err).Send()
		return "", time.Time{}, err
	}

	sess, err := s.repo.Get(ctx, refreshPayload.ID)
	if err != nil {
		return "", time.Time{}, err
	}

	switch {
	case sess.IsBlocked:
		err = domain.ErrBlockedSession
	case sess.UserID != refreshPayload.UserID:
		err = domain.ErrInvalidUser
	case sess.RefreshToken != refreshToken:
		err = domain.ErrMismatchedRefreshToken
	case time.Now().After(sess.ExpiresAt):
		err = domain.ErrExpiredSession
	}

	if err != nil {
		l.Info().Err(err).Str("session_id", sess.ID.String()).Send()
		return "", time.Time{}, err
	}

	sub := subjectOf(sess.UserID, sess.Email, sess.Status, sess.IsAdmin)

	accessToken, accessPayload, err := s.tokenMaker.CreateToken(sub, s.config.AccessTokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		return "", time.Time{}, errorspkg.ErrInternal
	}

	return accessToken, accessPayload.ExpiredAt, nil
}
