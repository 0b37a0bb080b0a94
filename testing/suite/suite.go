// Package suite boots a complete game server for integration tests: a
// temporary SQLite store, the auth service, one session and the TCP
// transport on an ephemeral port.
package suite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/service"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/session"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/transport/tcp"
)

const maxWaitDuration = 60 * time.Second

const jwtSecretKey = "integration-test-secret"

type Suite struct {
	*testing.T
	Logger *slog.Logger

	Addr    string
	Auth    service.AuthService
	Session *session.Session
}

// New - boots a server with the auth gate off (anonymous joins).
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	return boot(t, false)
}

// NewWithAuth - boots a server that requires a token on join.
func NewWithAuth(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	return boot(t, true)
}

func boot(t *testing.T, requireAuth bool) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("could not open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	if err = st.Init(ctx); err != nil {
		t.Fatalf("could not init storage: %v", err)
	}

	auth := service.NewAuthService(jwtSecretKey, repository.NewUserRepository(st.Connection))
	gameSession := session.New(logger)

	server := tcp.New(logger, gameSession, auth, requireAuth)
	if err = server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("could not listen: %v", err)
	}

	go func() {
		_ = server.Serve(ctx)
	}()

	return ctx, &Suite{
		T:       t,
		Logger:  logger,
		Addr:    server.Addr().String(),
		Auth:    auth,
		Session: gameSession,
	}
}
