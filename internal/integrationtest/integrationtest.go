// Package integrationtest provides helpers to run the whole API in tests.
package integrationtest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/marketrush/cmd/httpserver"
	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/internal/middleware"
	"github.com/go-petr/marketrush/internal/userrepo"
	"github.com/go-petr/marketrush/internal/userservice"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/randompkg"
	"github.com/go-petr/marketrush/pkg/tokenpkg"
	"github.com/rs/zerolog"
)

// SetupServer returns a test server over a fresh in memory store.
func SetupServer(t *testing.T) *httpserver.Server {
	t.Helper()

	config, err := configpkg.Load("../../configs")
	if err != nil {
		t.Fatalf(`configpkg.Load("../../configs") returned error: %v`, err)
	}

	config.StoreDriver = configpkg.StoreMemory

	zerolog.SetGlobalLevel(zerolog.FatalLevel)

	logger := middleware.CreateLogger(config)

	store, err := httpserver.OpenStore(context.Background(), config)
	if err != nil {
		t.Fatalf("httpserver.OpenStore() returned error: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(store, logger, config)
	if err != nil {
		t.Fatalf(`httpserver.New(store, logger, config) returned error: %v`, err)
	}

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	return server
}

// SeedUser registers a user with a random email and returns it with its password.
func SeedUser(t *testing.T, server *httpserver.Server) (domain.User, string) {
	t.Helper()

	return seedUser(t, server, randompkg.Email())
}

// SeedAdmin registers the first configured admin and returns it with its password.
func SeedAdmin(t *testing.T, server *httpserver.Server) (domain.User, string) {
	t.Helper()

	admins := server.Config.AdminEmailList()
	if len(admins) == 0 {
		t.Fatal("ADMIN_EMAILS is empty")
	}

	return seedUser(t, server, admins[0])
}

func seedUser(t *testing.T, server *httpserver.Server, email string) (domain.User, string) {
	t.Helper()

	password := randompkg.Password()
	service := userservice.New(userrepo.New(server.Store), server.Config)

	user, err := service.Create(context.Background(), email, password, "")
	if err != nil {
		t.Fatalf("userservice.Create(%v) returned error: %v", email, err)
	}

	return user, password
}

// AccessToken returns a bearer token for the user.
func AccessToken(t *testing.T, server *httpserver.Server, user domain.User) string {
	t.Helper()

	maker, err := tokenpkg.NewMaker(server.Config.TokenType, server.Config.TokenSymmetricKey)
	if err != nil {
		t.Fatalf("tokenpkg.NewMaker() returned error: %v", err)
	}

	token, _, err := maker.CreateToken(tokenpkg.Subject{
		UserID:  user.ID,
		Email:   user.Email,
		Status:  user.Status,
		IsAdmin: user.IsAdmin,
	}, server.Config.AccessTokenDuration)
	if err != nil {
		t.Fatalf("maker.CreateToken() returned error: %v", err)
	}

	return token
}

// Do sends a JSON request to the server. An empty token sends no authorization.
func Do(t *testing.T, server http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encoding request body error: %v", err)
		}
	}

	req, err := http.NewRequest(method, path, &buf)
	if err != nil {
		t.Fatalf("Creating request error: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.AuthTypeBearer+" "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	return recorder
}
