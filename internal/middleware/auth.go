// Package middleware provides gin middlewares shared by every route.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/tokenpkg"
	"github.com/go-petr/marketrush/pkg/web"
	"github.com/rs/zerolog"
)

// MsgMissingToken is returned to clients calling without the authorization header.
const MsgMissingToken = "Missing token"

// Authorization header values and the gin context key of the verified payload.
const (
	AuthHeaderKey  = "authorization"
	AuthTypeBearer = "bearer"
	AuthPayloadKey = "authorization_payload"
)

var (
	// ErrAuthHeaderNotFound indicates a request without the authorization header.
	ErrAuthHeaderNotFound = errors.New("authorization header is not provided")
	// ErrBadAuthHeaderFormat indicates a malformed authorization header.
	ErrBadAuthHeaderFormat = errors.New("invalid authorization header format")
	// ErrUnsupportedAuthType indicates an authorization type other than bearer.
	ErrUnsupportedAuthType = errors.New("unsupported authorization type")
)

// AddAuthorization creates a token for sub and sets it as the request authorization header.
func AddAuthorization(r *http.Request, maker tokenpkg.Maker, authType string, sub tokenpkg.Subject, duration time.Duration) error {
	token, _, err := maker.CreateToken(sub, duration)
	if err != nil {
		return err
	}

	r.Header.Set(AuthHeaderKey, fmt.Sprintf("%s %s", authType, token))

	return nil
}

// AuthMiddleware verifies the bearer token and stores its payload in the gin context.
func AuthMiddleware(maker tokenpkg.Maker) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		l := zerolog.Ctx(gctx.Request.Context())

		authHeader := gctx.GetHeader(AuthHeaderKey)
		if len(authHeader) == 0 {
			l.Info().Err(ErrAuthHeaderNotFound).Send()
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Response{Error: MsgMissingToken})

			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 {
			l.Info().Err(ErrBadAuthHeaderFormat).Send()
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(ErrBadAuthHeaderFormat))

			return
		}

		if strings.ToLower(fields[0]) != AuthTypeBearer {
			l.Info().Err(ErrUnsupportedAuthType).Str("type", fields[0]).Send()
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(ErrUnsupportedAuthType))

			return
		}

		payload, err := maker.VerifyToken(fields[1])
		if err != nil {
			l.Info().Err(err).Send()
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, web.Error(err))

			return
		}

		gctx.Set(AuthPayloadKey, payload)
		gctx.Next()
	}
}

// Caller returns the identity of the verified token, or a zero Caller when
// the request carries none.
func Caller(gctx *gin.Context) domain.Caller {
	v, ok := gctx.Get(AuthPayloadKey)
	if !ok {
		return domain.Caller{}
	}

	payload, ok := v.(*tokenpkg.Payload)
	if !ok || payload == nil {
		return domain.Caller{}
	}

	return domain.Caller{
		UserID:  payload.UserID,
		Email:   payload.Email,
		Status:  payload.Status,
		IsAdmin: payload.IsAdmin,
	}
}
