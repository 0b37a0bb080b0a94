package session

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
)

// Events a player can observe: exactly one of the fields is set.
type Event struct {
	Assigned *protocol.AssignedPayload
	State    *protocol.StatePayload
	Result   *protocol.ResultPayload
}

// eventBuffer is sized for a complete game: one assignment, at most ten
// state broadcasts and one result.
const eventBuffer = 32

// Player is one bound slot of a session. Its event channel is closed when
// the session reaches a terminal state.
type Player struct {
	Name string
	Mark entity.Mark

	events chan Event
}

// Events - the ordered stream of broadcasts addressed to this player.
func (that *Player) Events() <-chan Event {
	return that.events
}

// Session owns one game between exactly two players. Every mutation goes
// through the mutex, so moves are applied one at a time and each broadcast
// is enqueued before the next move can be accepted.
type Session struct {
	logger *slog.Logger

	mu      sync.Mutex
	game    *entity.Game
	players [2]*Player
	closed  bool

	started chan struct{}
	done    chan struct{}
}

// New - creates a session waiting for two players.
func New(logger *slog.Logger) *Session {
	return &Session{
		logger:  logger.With("component", "session"),
		game:    entity.NewGame(),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Started - closed once both slots are bound and the game is ongoing.
func (that *Session) Started() <-chan struct{} {
	return that.started
}

// Done - closed once the session reached a terminal state.
func (that *Session) Done() <-chan struct{} {
	return that.done
}

// Join - binds the next free slot. The first player becomes X, the second
// becomes O; the second join starts the game and broadcasts the opening
// state. An empty name defaults to the mark itself.
func (that *Session) Join(name string) (*Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, apperror.ErrGameFinished
	}

	var mark entity.Mark
	var slot int
	switch {
	case that.players[0] == nil:
		mark, slot = entity.MarkX, 0
	case that.players[1] == nil:
		mark, slot = entity.MarkO, 1
	default:
		return nil, apperror.ErrSessionFull
	}

	if name == "" {
		name = string(mark)
	}

	player := &Player{
		Name:   name,
		Mark:   mark,
		events: make(chan Event, eventBuffer),
	}
	that.players[slot] = player

	player.events <- Event{Assigned: &protocol.AssignedPayload{Mark: mark, Player: name}}

	that.logger.Info("player joined", "player", name, "mark", mark)

	if that.players[0] != nil && that.players[1] != nil {
		that.game.Start()
		close(that.started)
		that.broadcastState()
		that.logger.Info("game started")
	}

	return player, nil
}

// MakeTurn - applies one move for the given mark. A failed move leaves the
// session untouched and is reported only to the caller; an accepted move is
// broadcast to both players as a state or, when it ends the game, a result.
func (that *Session) MakeTurn(mark entity.Mark, cell int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return apperror.ErrGameFinished
	}

	if err := that.game.MakeTurn(mark, cell); err != nil {
		return err
	}

	if !that.game.IsFinished() {
		that.broadcastState()
		return nil
	}

	result := protocol.ResultPayload{Outcome: protocol.OutcomeDraw}
	if winner := that.game.Winner; winner != entity.MarkTie {
		result = protocol.ResultPayload{Outcome: protocol.OutcomeWin, Winner: winner}
	}

	that.logger.Info("game finished", "outcome", result.Outcome, "winner", result.Winner)
	that.finish(result)

	return nil
}

// Forfeit - concedes the game; the opponent wins immediately.
func (that *Session) Forfeit(mark entity.Mark) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return apperror.ErrGameFinished
	}

	if err := that.game.ConfirmOngoingState(); err != nil {
		return err
	}

	winner := mark.Other()
	that.game.Winner = winner
	that.game.Status = entity.StatusFinished
	that.game.Turn = entity.MarkEmpty

	that.logger.Info("game forfeited", "by", mark, "winner", winner)
	that.finish(protocol.ResultPayload{
		Outcome: protocol.OutcomeWin,
		Winner:  winner,
		Reason:  protocol.ReasonForfeit,
	})

	return nil
}

// Leave - records a player disconnect. Before a terminal state this aborts
// the game and notifies the opponent exactly once; afterwards it is a no-op.
func (that *Session) Leave(mark entity.Mark) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.game.Abort()
	that.logger.Info("player left, game aborted", "mark", mark)

	result := protocol.ResultPayload{
		Outcome: protocol.OutcomeAborted,
		Reason:  protocol.ReasonOpponentLeft,
	}
	for _, player := range that.players {
		if player != nil && player.Mark != mark {
			player.events <- Event{Result: &result}
		}
	}

	that.close()
}

// broadcastState - enqueues the current board and turn to both players.
// Callers hold the mutex.
func (that *Session) broadcastState() {
	state := protocol.StatePayload{Board: that.game.Board, Turn: that.game.Turn}
	for _, player := range that.players {
		if player != nil {
			player.events <- Event{State: &state}
		}
	}
}

// finish - broadcasts a terminal result and closes the session. Callers
// hold the mutex.
func (that *Session) finish(result protocol.ResultPayload) {
	for _, player := range that.players {
		if player != nil {
			player.events <- Event{Result: &result}
		}
	}

	that.close()
}

// close - marks the session terminal and releases both players. Callers
// hold the mutex.
func (that *Session) close() {
	that.closed = true
	for _, player := range that.players {
		if player != nil {
			close(player.events)
		}
	}
	close(that.done)
}
