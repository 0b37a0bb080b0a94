package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/service"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/session"
)

type Server struct {
	logger      *slog.Logger
	session     *session.Session
	auth        service.AuthService
	requireAuth bool

	listener net.Listener

	handlers map[string]func(ctx context.Context, handler *connHandler, msg *protocol.Message) error

	connsMutex sync.Mutex
	conns      map[net.Conn]*connHandler
}

func New(logger *slog.Logger, gameSession *session.Session, auth service.AuthService, requireAuth bool) *Server {
	server := &Server{
		logger:      logger.With("component", "tcp"),
		session:     gameSession,
		auth:        auth,
		requireAuth: requireAuth,
		conns:       make(map[net.Conn]*connHandler),
		handlers:    make(map[string]func(context.Context, *connHandler, *protocol.Message) error),
	}

	server.handlers[protocol.ActionRegister] = server.handleRegister
	server.handlers[protocol.ActionLogin] = server.handleLogin
	server.handlers[protocol.ActionJoin] = server.handleJoin
	server.handlers[protocol.ActionMove] = server.handleMove
	server.handlers[protocol.ActionForfeit] = server.handleForfeit

	return server
}

// Listen - binds the game port. A bind failure is fatal for the process.
func (that *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	that.listener = listener
	that.logger.Info("listening", "addr", listener.Addr().String())

	return nil
}

// Addr - the bound address. Valid after Listen.
func (that *Server) Addr() net.Addr {
	return that.listener.Addr()
}

// Serve - accepts connections until the session is full, then serves the
// bound connections until the session reaches a terminal state or the
// context is canceled.
func (that *Server) Serve(ctx context.Context) error {
	log := that.logger.With("method", "Serve")

	go func() {
		select {
		case <-ctx.Done():
		case <-that.session.Started():
		}
		// both slots are bound, no further connections are accepted
		_ = that.listener.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := that.listener.Accept()
		if err != nil {
			break
		}

		log.Info("connection accepted", "remote", conn.RemoteAddr().String())

		wg.Add(1)
		go func() {
			defer wg.Done()
			that.handleConn(ctx, conn)
		}()
	}

	select {
	case <-that.session.Done():
		log.Info("session ended")
	case <-ctx.Done():
		log.Info("context canceled, shutting down")
	}

	that.closeConns(ctx.Err() != nil)
	wg.Wait()

	return nil
}

// Start - binds the port and serves. Split so tests can bind port 0 and
// read the address back before serving.
func (that *Server) Start(ctx context.Context, port string) error {
	if err := that.Listen(":" + port); err != nil {
		return err
	}

	return that.Serve(ctx)
}

func (that *Server) addConn(conn net.Conn, handler *connHandler) {
	that.connsMutex.Lock()
	defer that.connsMutex.Unlock()
	that.conns[conn] = handler
}

func (that *Server) removeConn(conn net.Conn) {
	that.connsMutex.Lock()
	defer that.connsMutex.Unlock()
	delete(that.conns, conn)
}

// closeConns - force-closes connections left behind after the accept loop.
// Joined connections close themselves once their event stream drains, so
// they are skipped unless the whole server is shutting down.
func (that *Server) closeConns(all bool) {
	that.connsMutex.Lock()
	defer that.connsMutex.Unlock()

	for conn, handler := range that.conns {
		if all || !handler.joined.Load() {
			_ = conn.Close()
		}
	}
}
