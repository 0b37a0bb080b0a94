package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
)

// Message is one framed game event: an action name plus its payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server actions.
const (
	ActionRegister = "register"
	ActionLogin    = "login"
	ActionJoin     = "join"
	ActionMove     = "move"
	ActionForfeit  = "forfeit"
)

// Server to client actions. Register and login acks reuse the request action.
const (
	ActionAssigned = "assigned"
	ActionState    = "state"
	ActionResult   = "result"
	ActionError    = "error"
)

const (
	ErrorKindOutOfRange       = "out_of_range"
	ErrorKindCellOccupied     = "cell_occupied"
	ErrorKindNotYourTurn      = "not_your_turn"
	ErrorKindSessionNotActive = "session_not_active"
	ErrorKindProtocolError    = "protocol_error"
	ErrorKindBadAuth          = "bad_auth"
)

const (
	OutcomeWin     = "win"
	OutcomeDraw    = "draw"
	OutcomeAborted = "aborted"
)

const (
	ReasonForfeit      = "forfeit"
	ReasonOpponentLeft = "opponent_left"
)

type CredentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPayload struct {
	Token string `json:"token,omitempty"`
}

type AssignedPayload struct {
	Mark   entity.Mark `json:"mark"`
	Player string      `json:"player"`
}

type MovePayload struct {
	Cell int `json:"cell"`
}

type StatePayload struct {
	Board [9]entity.Mark `json:"board"`
	Turn  entity.Mark    `json:"turn"`
}

type ResultPayload struct {
	Outcome string      `json:"outcome"`
	Winner  entity.Mark `json:"winner,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// NewMessage - builds a message with the payload marshaled in place.
func NewMessage(action string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Action: action}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Message{Action: action, Payload: raw}, nil
}
