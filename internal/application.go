package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/config"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/service"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/session"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/transport/tcp"
)

// RunApp - runs one match: wires storage, auth and the session, serves the
// game port until the session ends or a signal arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	st, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = st.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = st.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	userRepo := repository.NewUserRepository(st.Connection)
	authService := service.NewAuthService(conf.JWTSecretKey, userRepo)
	gameSession := session.New(logger)

	server := tcp.New(logger, gameSession, authService, conf.RequireAuth)

	log.Info("Starting game server", "port", conf.GamePort, "require-auth", conf.RequireAuth)
	if err = server.Start(ctx, conf.GamePort); err != nil {
		return fmt.Errorf("game server error: %w", err)
	}

	log.Info("Session complete, shutting down")

	return nil
}
