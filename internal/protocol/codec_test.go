package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage(t *testing.T) {
	// Given: a move message written to a buffer
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	msg, err := NewMessage(ActionMove, MovePayload{Cell: 4})
	require.NoError(t, err)
	require.NoError(t, WriteMessage(writer, msg))

	// Then: exactly one line was produced
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	// When: reading it back
	got, err := ReadMessage(bufio.NewReader(&buf))

	// Then: the action and payload survive the round trip
	require.NoError(t, err)
	assert.Equal(t, ActionMove, got.Action)
	assert.JSONEq(t, `{"cell":4}`, string(got.Payload))
}

func TestReadMessage_Malformed(t *testing.T) {
	t.Run("Garbage line is a malformed message", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("not json at all\n"))

		_, err := ReadMessage(reader)

		require.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("Missing action is a malformed message", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader(`{"payload":{}}` + "\n"))

		_, err := ReadMessage(reader)

		require.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("Closed stream is not a malformed message", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader(""))

		_, err := ReadMessage(reader)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMalformedMessage)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestStatePayloadBoardEncoding(t *testing.T) {
	// Given: a state with two moves applied
	state := StatePayload{Turn: entity.MarkX}
	state.Board[0] = entity.MarkX
	state.Board[4] = entity.MarkO

	msg, err := NewMessage(ActionState, state)
	require.NoError(t, err)

	// Then: the board serializes as 9 plain strings
	assert.JSONEq(t, `{"board":["X","","","","O","","","",""],"turn":"X"}`, string(msg.Payload))
}
