// Package userdelivery manages delivery layer of users.
package userdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/internal/middleware"
	"github.com/go-petr/marketrush/pkg/errorspkg"
	"github.com/go-petr/marketrush/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Response messages.
const (
	MsgRegistered = "Registered successfully. Awaiting approval."
	MsgLoggedIn   = "Login successful"
)

// Service provides service layer interface needed by user delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery
type Service interface {
	Create(ctx context.Context, email, password, username string) (domain.User, error)
	CheckPassword(ctx context.Context, email, password string) (domain.User, error)
	Profile(ctx context.Context, caller domain.Caller) (domain.User, error)
}

// SessionMaker facilitates session creation.
type SessionMaker interface {
	Create(ctx context.Context, arg domain.CreateSessionParams) (string, time.Time, domain.Session, error)
}

// Handler facilitates user delivery layer logic.
type Handler struct {
	service      Service
	sessionMaker SessionMaker
}

// NewHandler returns user handler.
func NewHandler(us Service, sm SessionMaker) *Handler {
	return &Handler{
		service:      us,
		sessionMaker: sm,
	}
}

type data struct {
	User   domain.User `json:"user"`
	Status string      `json:"status,omitempty"`
}

func bindError(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		gctx.JSON(http.StatusBadRequest, web.ValidationError(ve))
		return
	}

	gctx.JSON(http.StatusBadRequest, web.Response{Error: "invalid request body"})
}

// withSession issues tokens for the user and writes them with msg and the user data.
func (h *Handler) withSession(gctx *gin.Context, user domain.User, msg string) {
	ctx := gctx.Request.Context()

	arg := domain.CreateSessionParams{
		User:      user,
		UserAgent: gctx.Request.UserAgent(),
		ClientIP:  gctx.ClientIP(),
	}

	accessToken, accessTokenExpiresAt, session, err := h.sessionMaker.Create(ctx, arg)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Send()

		if errors.Is(err, domain.ErrStoreUnavailable) {
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		Message:               msg,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  web.Timestamp(accessTokenExpiresAt),
		RefreshToken:          session.RefreshToken,
		RefreshTokenExpiresAt: web.Timestamp(session.ExpiresAt),
		Data:                  data{User: user, Status: user.Status},
	})
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Username string `json:"username"`
}

// Signup handles http request to register a user.
func (h *Handler) Signup(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req signupRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	user, err := h.service.Create(ctx, req.Email, req.Password, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailAlreadyExists):
			gctx.JSON(http.StatusConflict, web.Error(err))
		case errors.Is(err, domain.ErrStoreUnavailable):
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	h.withSession(gctx, user, MsgRegistered)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles http login request and returns user and session data.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	user, err := h.service.CheckPassword(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrWrongPassword):
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
		case errors.Is(err, domain.ErrIncompleteUser):
			gctx.JSON(http.StatusInternalServerError, web.Error(err))
		case errors.Is(err, domain.ErrStoreUnavailable):
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	h.withSession(gctx, user, MsgLoggedIn)
}

// Me handles http request to get the caller's profile and aggregates.
func (h *Handler) Me(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	user, err := h.service.Profile(ctx, middleware.Caller(gctx))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
		case errors.Is(err, domain.ErrUserNotFound):
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case errors.Is(err, domain.ErrStoreUnavailable):
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: data{User: user}})
}
