// Package httpserver manages server creation and api routing.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/marketrush/internal/ledgerdelivery"
	"github.com/go-petr/marketrush/internal/ledgerrepo"
	"github.com/go-petr/marketrush/internal/ledgerservice"
	"github.com/go-petr/marketrush/internal/middleware"
	"github.com/go-petr/marketrush/internal/sessiondelivery"
	"github.com/go-petr/marketrush/internal/sessionrepo"
	"github.com/go-petr/marketrush/internal/sessionservice"
	"github.com/go-petr/marketrush/internal/settingsdelivery"
	"github.com/go-petr/marketrush/internal/settingsrepo"
	"github.com/go-petr/marketrush/internal/settingsservice"
	"github.com/go-petr/marketrush/internal/userdelivery"
	"github.com/go-petr/marketrush/internal/userrepo"
	"github.com/go-petr/marketrush/internal/userservice"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/go-petr/marketrush/pkg/tokenpkg"
	"github.com/go-petr/marketrush/pkg/web"
)

// ServiceName is reported by the health check.
const ServiceName = "MarketRush API"

// Server holds the document store, handlers router and configuration.
type Server struct {
	Store  docstore.Store
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(store docstore.Store, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	userRepo := userrepo.New(store)
	sessionRepo := sessionrepo.New(store)
	settingsRepo := settingsrepo.New(store)
	ledgerRepo := ledgerrepo.New(store)

	tokenMaker, err := tokenpkg.NewMaker(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	userService := userservice.New(userRepo, config)
	settingsService := settingsservice.New(settingsRepo)
	ledgerService := ledgerservice.New(ledgerRepo, settingsService, config)

	sessionService, err := sessionservice.New(sessionRepo, config, tokenMaker)
	if err != nil {
		return nil, errors.New("cannot initialize session service")
	}

	userHandler := userdelivery.NewHandler(userService, sessionService)
	sessionHandler := sessiondelivery.NewHandler(sessionService)
	settingsHandler := settingsdelivery.NewHandler(settingsService)
	ledgerHandler := ledgerdelivery.NewHandler(ledgerService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(config.AllowedOrigins()))

	engine.GET("/", func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	engine.POST("/auth/signup", userHandler.Signup)
	engine.POST("/auth/login", userHandler.Login)
	engine.POST("/sessions", sessionHandler.RenewAccessToken)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.GET("/users/me", userHandler.Me)

	authRoutes.GET("/settings", settingsHandler.Get)
	authRoutes.PUT("/settings", settingsHandler.Update)

	authRoutes.POST("/rewards/deposit", ledgerHandler.Deposit)
	authRoutes.POST("/rewards/withdraw", ledgerHandler.Withdraw)
	authRoutes.GET("/history/me", ledgerHandler.History)

	engine.NoRoute(func(gctx *gin.Context) {
		gctx.JSON(http.StatusNotFound, web.Response{Message: "Not found"})
	})

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("reward_interval", settingsdelivery.ValidRewardInterval)
		if err != nil {
			return nil, errors.New("cannot register reward_interval validator")
		}
	}

	server := &Server{
		Store:  store,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
