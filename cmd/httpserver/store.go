package httpserver

import (
	"context"
	"fmt"

	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/go-petr/marketrush/pkg/docstore/memstore"
	"github.com/go-petr/marketrush/pkg/docstore/mongostore"
	"github.com/go-petr/marketrush/pkg/docstore/pgstore"
	"github.com/go-petr/marketrush/pkg/docstore/redisstore"
)

// OpenStore opens the document store selected by STORE_DRIVER and guards it
// with a circuit breaker.
func OpenStore(ctx context.Context, config configpkg.Config) (docstore.Store, error) {
	policy := docstore.RetryPolicy{
		MaxAttempts: config.StoreMaxAttempts,
		Base:        config.StoreRetryBase,
	}

	var (
		store docstore.Store
		err   error
	)

	switch config.StoreDriver {
	case configpkg.StoreMemory:
		store = memstore.New()
	case configpkg.StorePostgres:
		store, err = pgstore.Open(ctx, config.DBDriver, config.DBSource, policy)
	case configpkg.StoreRedis:
		store, err = redisstore.Open(ctx, config.RedisAddress, config.RedisPassword, config.RedisDB, policy)
	case configpkg.StoreMongo:
		store, err = mongostore.Open(ctx, config.MongoURI, config.MongoDatabase, policy)
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", config.StoreDriver, err)
	}

	return docstore.WithBreaker(store, docstore.BreakerSettings{
		Name:        config.StoreDriver,
		MaxFailures: config.BreakerMaxFailures,
		OpenTimeout: config.BreakerOpenTimeout,
	}), nil
}
