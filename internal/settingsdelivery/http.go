// Package settingsdelivery manages delivery layer of the global settings.
package settingsdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/internal/middleware"
	"github.com/go-petr/marketrush/pkg/errorspkg"
	"github.com/go-petr/marketrush/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MsgSettingsUpdated is the message of a successful update.
const MsgSettingsUpdated = "Settings updated"

// Service provides service layer interface needed by settings delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package settingsdelivery
type Service interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, caller domain.Caller, arg domain.UpdateSettingsParams) (domain.Settings, error)
}

// Handler facilitates settings delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns settings handler.
func NewHandler(ss Service) *Handler {
	return &Handler{service: ss}
}

type data struct {
	Settings domain.Settings `json:"settings"`
}

// Get handles http request to read the settings.
func (h *Handler) Get(gctx *gin.Context) {
	settings, err := h.service.Get(gctx.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: data{settings}})
}

type tierRequest struct {
	MinPct decimal.Decimal `json:"minPct"`
	MaxPct decimal.Decimal `json:"maxPct"`
}

type updateRequest struct {
	MaxDepositPerUser *decimal.Decimal       `json:"maxDepositPerUser"`
	Groups            map[string]tierRequest `json:"groups"`
	RewardInterval    *string                `json:"rewardInterval" binding:"omitempty,reward_interval"`
}

// Update handles http request to partially update the settings.
func (h *Handler) Update(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	caller := middleware.Caller(gctx)
	if !caller.IsAdmin {
		l.Warn().Str("user_id", caller.UserID).Msg("settings update by non admin")
		gctx.JSON(http.StatusForbidden, web.Error(domain.ErrForbidden))

		return
	}

	var req updateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.ValidationError(ve))
			return
		}

		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidSettings))

		return
	}

	arg := domain.UpdateSettingsParams{
		MaxDepositPerUser: req.MaxDepositPerUser,
		RewardInterval:    req.RewardInterval,
	}

	if len(req.Groups) > 0 {
		arg.Groups = make(map[string]domain.Tier, len(req.Groups))
		for name, tier := range req.Groups {
			arg.Groups[name] = domain.Tier{MinPct: tier.MinPct, MaxPct: tier.MaxPct}
		}
	}

	settings, err := h.service.Update(ctx, caller, arg)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSettings):
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case errors.Is(err, domain.ErrForbidden):
			gctx.JSON(http.StatusForbidden, web.Error(err))
		case errors.Is(err, domain.ErrUnauthorized):
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
		case errors.Is(err, domain.ErrStoreUnavailable):
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		Message: MsgSettingsUpdated,
		Data:    data{settings},
	})
}
