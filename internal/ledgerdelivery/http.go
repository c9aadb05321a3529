// Package ledgerdelivery manages delivery layer of deposits, withdrawals and history.
package ledgerdelivery

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
)

// Response messages.
const (
	MsgDepositRecorded     = "Deposit recorded."
	MsgWithdrawalSubmitted = "Withdrawal request submitted (pending approval)."
	MsgInvalidAmount       = "Invalid amount"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	RecordDeposit(ctx context.Context, caller domain.Caller, amount any) (domain.RecordResult, error)
	RecordWithdrawal(ctx context.Context, caller domain.Caller, amount any) (domain.RecordResult, error)
	List(ctx context.Context, caller domain.Caller, from, to string) ([]domain.Entry, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(ls Service) *Handler {
	return &Handler{service: ls}
}

type amountRequest struct {
	Amount any `json:"amount"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrDepositCapExceeded),
		errors.Is(err, domain.ErrWithdrawalTooSmall),
		errors.Is(err, domain.ErrWithdrawalTooLarge),
		errors.Is(err, domain.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

func (h *Handler) writeError(gctx *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(gctx.Request.Context()).Error().Err(err).Send()
		gctx.JSON(code, web.Error(errorspkg.ErrInternal))

		return
	}

	if errors.Is(err, domain.ErrInvalidAmount) {
		gctx.JSON(code, web.Response{Error: MsgInvalidAmount})
		return
	}

	gctx.JSON(code, web.Error(err))
}

func (h *Handler) bindAmount(gctx *gin.Context) (amountRequest, bool) {
	l := zerolog.Ctx(gctx.Request.Context())

	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.ValidationError(ve))
			return req, false
		}

		gctx.JSON(http.StatusBadRequest, web.Response{Error: MsgInvalidAmount})

		return req, false
	}

	return req, true
}

// Deposit handles http request to record a deposit of the caller.
func (h *Handler) Deposit(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	req, ok := h.bindAmount(gctx)
	if !ok {
		return
	}

	result, err := h.service.RecordDeposit(ctx, middleware.Caller(gctx), req.Amount)
	if err != nil {
		h.writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		Message: MsgDepositRecorded,
		Data:    result,
	})
}

// Withdraw handles http request to record a withdrawal request of the caller.
func (h *Handler) Withdraw(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	req, ok := h.bindAmount(gctx)
	if !ok {
		return
	}

	result, err := h.service.RecordWithdrawal(ctx, middleware.Caller(gctx), req.Amount)
	if err != nil {
		h.writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		Message: MsgWithdrawalSubmitted,
		Data:    result,
	})
}

type historyRequest struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

type historyData struct {
	Transactions []domain.Entry `json:"transactions"`
}

// History handles http request to list the caller's ledger entries.
func (h *Handler) History(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req historyRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			gctx.JSON(http.StatusBadRequest, web.ValidationError(ve))
			return
		}

		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidDateRange))

		return
	}

	entries, err := h.service.List(ctx, middleware.Caller(gctx), req.From, req.To)
	if err != nil {
		h.writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		Data: historyData{Transactions: entries},
	})
}
