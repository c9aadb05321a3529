// Package main runs the MarketRush API that records reward deposits and
// withdrawal requests of members.
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-petr/marketrush/cmd/httpserver"
	"github.com/go-petr/marketrush/internal/middleware"
	"github.com/go-petr/marketrush/pkg/configpkg"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := httpserver.OpenStore(logger.WithContext(ctx), config)
	cancel()

	if err != nil {
		logger.Fatal().Err(err).Str("driver", config.StoreDriver).Msg("cannot open document store")
	}

	server, err := httpserver.New(store, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Str("store", config.StoreDriver).Msg("MARKETRUSH API SERVER HAS STARTED")

	err = server.Engine.Run(config.ServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
