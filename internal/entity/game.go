package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
	StatusAborted  = "aborted"
)

// Mark is the symbol a player places on the board. The empty mark is only
// ever a board cell state, never a player identity or a turn.
type Mark string

const (
	MarkEmpty Mark = ""
	MarkX     Mark = "X"
	MarkO     Mark = "O"
	MarkTie   Mark = "-"
)

// Other - returns the opposing mark.
func (that Mark) Other() Mark {
	if that == MarkX {
		return MarkO
	}
	return MarkX
}

// WinCombos lists the 8 winning lines in a fixed scan order:
// rows top to bottom, columns left to right, then the two diagonals.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game holds the authoritative state of one match: the board, whose turn it
// is, the winner once decided and the lifecycle status.
type Game struct {
	Board  [9]Mark `json:"board"`
	Turn   Mark    `json:"turn"`
	Winner Mark    `json:"winner,omitempty"`
	Status string  `json:"status"`
}

// NewGame - creates a game waiting for players. X always opens.
func NewGame() *Game {
	return &Game{
		Board:  [9]Mark{},
		Turn:   MarkX,
		Status: StatusWaiting,
	}
}

// Start - moves the game from waiting to ongoing once both players are bound.
func (that *Game) Start() {
	if that.Status == StatusWaiting {
		that.Status = StatusOngoing
	}
}

// Abort - terminates the game without a result, e.g. when a player drops.
func (that *Game) Abort() {
	that.Status = StatusAborted
	that.Turn = MarkEmpty
}

// MakeTurn - applies one move for the given mark. Validation order: the game
// must be ongoing, it must be that player's turn, the cell must exist and be
// empty. On any failure the board and turn are left untouched.
func (that *Game) MakeTurn(player Mark, cell int) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	if that.Turn != player {
		return apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != MarkEmpty {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = player

	switch winner := that.DetermineGameResult(); winner {
	case MarkX, MarkO:
		that.Winner = winner
		that.Status = StatusFinished
		that.Turn = MarkEmpty
	case MarkTie:
		that.Winner = MarkTie
		that.Status = StatusFinished
		that.Turn = MarkEmpty
	default:
		that.Turn = player.Other()
	}

	return nil
}

// DetermineGameResult - scans all 8 lines in WinCombos order and returns the
// winning mark, MarkTie on a full board without a winner, or MarkEmpty while
// the game is still open.
func (that *Game) DetermineGameResult() Mark {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != MarkEmpty && a == b && b == c {
			return a
		}
	}

	if !that.IsBoardFull() {
		return MarkEmpty
	}

	return MarkTie
}

// IsBoardFull - reports whether all 9 cells are occupied.
func (that *Game) IsBoardFull() bool {
	for _, cell := range that.Board {
		if cell == MarkEmpty {
			return false
		}
	}
	return true
}

// IsDraw - reports a full board with no winning line.
func (that *Game) IsDraw() bool {
	return that.IsBoardFull() && that.DetermineGameResult() == MarkTie
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsAborted() bool {
	return that.Status == StatusAborted
}

// ConfirmOngoingState - returns nil only while moves may still be applied.
func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished(), that.IsAborted():
		return apperror.ErrGameFinished
	default:
		return nil
	}
}
