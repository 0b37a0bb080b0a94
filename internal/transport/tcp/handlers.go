package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/session"
)

// errCloseConn tells the read loop to drop the connection after the
// current message was answered.
var errCloseConn = errors.New("closing connection")

// connHandler serves one client: a read loop for inbound messages and,
// once the client joined, an independent write pump for session events, so
// broadcasts are never blocked behind the next read.
type connHandler struct {
	logger *slog.Logger
	server *Server
	conn   net.Conn
	reader *bufio.Reader

	writeMutex sync.Mutex
	writer     *bufio.Writer

	joined atomic.Bool
	player *session.Player
}

func (that *Server) handleConn(ctx context.Context, conn net.Conn) {
	handler := &connHandler{
		logger: that.logger.With("remote", conn.RemoteAddr().String()),
		server: that,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}

	that.addConn(conn, handler)
	defer that.removeConn(conn)
	defer conn.Close()

	handler.readLoop(ctx)
}

func (that *connHandler) readLoop(ctx context.Context) {
	log := that.logger.With("method", "readLoop")

	defer that.leave()

	for {
		msg, err := protocol.ReadMessage(that.reader)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				log.Error("malformed message", "error", err)
				that.sendError(protocol.ErrorKindProtocolError, "malformed message")
				return
			}

			// socket error or clean close
			log.Info("connection closed", "error", err)
			return
		}

		handler, ok := that.server.handlers[msg.Action]
		if !ok {
			log.Error("unknown action", "action", msg.Action)
			that.sendError(protocol.ErrorKindProtocolError, "unknown action: "+msg.Action)
			return
		}

		if err = handler(ctx, that, msg); err != nil {
			if errors.Is(err, errCloseConn) {
				return
			}
			log.Error("error processing message", "action", msg.Action, "error", err)
		}
	}
}

// leave - reports a disconnect to the session for a joined player.
func (that *connHandler) leave() {
	if that.joined.Load() && that.player != nil {
		that.server.session.Leave(that.player.Mark)
	}
}

// writePump - forwards session events to the client. The session closes
// the event channel on a terminal result; nothing follows it, so the
// connection is closed right after.
func (that *connHandler) writePump() {
	log := that.logger.With("method", "writePump")

	for event := range that.player.Events() {
		var err error
		switch {
		case event.Assigned != nil:
			err = that.send(protocol.ActionAssigned, event.Assigned)
		case event.State != nil:
			err = that.send(protocol.ActionState, event.State)
		case event.Result != nil:
			err = that.send(protocol.ActionResult, event.Result)
		}
		if err != nil {
			log.Error("failed to send event", "error", err)
		}
	}

	_ = that.conn.Close()
}

func (that *connHandler) send(action string, payload any) error {
	msg, err := protocol.NewMessage(action, payload)
	if err != nil {
		return err
	}

	that.writeMutex.Lock()
	defer that.writeMutex.Unlock()

	return protocol.WriteMessage(that.writer, msg)
}

func (that *connHandler) sendError(kind, message string) {
	if err := that.send(protocol.ActionError, protocol.ErrorPayload{Kind: kind, Message: message}); err != nil {
		that.logger.Error("failed to send error response", "error", err)
	}
}

func (that *Server) handleRegister(ctx context.Context, handler *connHandler, msg *protocol.Message) error {
	var creds protocol.CredentialsPayload
	if err := json.Unmarshal(msg.Payload, &creds); err != nil {
		handler.sendError(protocol.ErrorKindProtocolError, "malformed payload")
		return errCloseConn
	}

	if err := that.auth.Register(ctx, creds.Username, creds.Password); err != nil {
		handler.sendError(protocol.ErrorKindBadAuth, err.Error())
		return nil
	}

	return handler.send(protocol.ActionRegister, nil)
}

func (that *Server) handleLogin(ctx context.Context, handler *connHandler, msg *protocol.Message) error {
	var creds protocol.CredentialsPayload
	if err := json.Unmarshal(msg.Payload, &creds); err != nil {
		handler.sendError(protocol.ErrorKindProtocolError, "malformed payload")
		return errCloseConn
	}

	token, err := that.auth.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		handler.sendError(protocol.ErrorKindBadAuth, err.Error())
		return nil
	}

	return handler.send(protocol.ActionLogin, protocol.TokenPayload{Token: token})
}

func (that *Server) handleJoin(_ context.Context, handler *connHandler, msg *protocol.Message) error {
	log := that.logger.With("method", "handleJoin")

	if handler.joined.Load() {
		handler.sendError(protocol.ErrorKindSessionNotActive, "already joined")
		return errCloseConn
	}

	var payload protocol.TokenPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			handler.sendError(protocol.ErrorKindProtocolError, "malformed payload")
			return errCloseConn
		}
	}

	var name string
	if that.requireAuth {
		if payload.Token == "" {
			handler.sendError(protocol.ErrorKindBadAuth, "token required")
			return nil
		}

		username, err := that.auth.VerifyToken(payload.Token)
		if err != nil {
			handler.sendError(protocol.ErrorKindBadAuth, err.Error())
			return nil
		}
		name = username
	}

	player, err := that.session.Join(name)
	if err != nil {
		// excess joins are refused, never queued
		handler.sendError(protocol.ErrorKindSessionNotActive, err.Error())
		return errCloseConn
	}

	handler.player = player
	handler.joined.Store(true)

	go handler.writePump()

	log.Info("player bound", "player", player.Name, "mark", player.Mark)

	return nil
}

func (that *Server) handleMove(_ context.Context, handler *connHandler, msg *protocol.Message) error {
	if !handler.joined.Load() {
		handler.sendError(protocol.ErrorKindSessionNotActive, "join first")
		return nil
	}

	var payload protocol.MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		handler.sendError(protocol.ErrorKindProtocolError, "malformed payload")
		return errCloseConn
	}

	if err := that.session.MakeTurn(handler.player.Mark, payload.Cell); err != nil {
		handler.sendError(errorKind(err), err.Error())
		return nil
	}

	return nil
}

func (that *Server) handleForfeit(_ context.Context, handler *connHandler, _ *protocol.Message) error {
	if !handler.joined.Load() {
		handler.sendError(protocol.ErrorKindSessionNotActive, "join first")
		return nil
	}

	if err := that.session.Forfeit(handler.player.Mark); err != nil {
		handler.sendError(errorKind(err), err.Error())
		return nil
	}

	return nil
}

// errorKind - maps rule violations to their wire error kinds.
func errorKind(err error) string {
	switch {
	case errors.Is(err, apperror.ErrInvalidCell):
		return protocol.ErrorKindOutOfRange
	case errors.Is(err, apperror.ErrCellOccupied):
		return protocol.ErrorKindCellOccupied
	case errors.Is(err, apperror.ErrNotYourTurn):
		return protocol.ErrorKindNotYourTurn
	case errors.Is(err, apperror.ErrGameIsNotStarted),
		errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrSessionFull):
		return protocol.ErrorKindSessionNotActive
	case errors.Is(err, apperror.ErrInvalidToken):
		return protocol.ErrorKindBadAuth
	default:
		return protocol.ErrorKindProtocolError
	}
}
