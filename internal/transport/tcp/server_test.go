package tcp_test

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/client"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-tcp/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	return payload
}

// readAction reads the next message and requires its action.
func readAction(t *testing.T, c *client.Client, action string) *protocol.Message {
	t.Helper()
	msg, err := c.Read()
	require.NoError(t, err)
	require.Equal(t, action, msg.Action, "unexpected message %q", msg.Action)
	return msg
}

// joinTwo connects both players and consumes their assignment and the
// opening state broadcast.
func joinTwo(t *testing.T, addr string) (*client.Client, *client.Client) {
	t.Helper()

	playerX, err := client.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = playerX.Close() })
	require.NoError(t, playerX.Join(""))

	assigned := decodePayload[protocol.AssignedPayload](t, readAction(t, playerX, protocol.ActionAssigned))
	require.Equal(t, entity.MarkX, assigned.Mark)

	playerO, err := client.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = playerO.Close() })
	require.NoError(t, playerO.Join(""))

	assigned = decodePayload[protocol.AssignedPayload](t, readAction(t, playerO, protocol.ActionAssigned))
	require.Equal(t, entity.MarkO, assigned.Mark)

	for _, c := range []*client.Client{playerX, playerO} {
		state := decodePayload[protocol.StatePayload](t, readAction(t, c, protocol.ActionState))
		require.Equal(t, [9]entity.Mark{}, state.Board)
		require.Equal(t, entity.MarkX, state.Turn)
	}

	return playerX, playerO
}

func TestServer_FullGame(t *testing.T) {
	// Given: a running server with both players joined
	_, st := suite.New(t)
	playerX, playerO := joinTwo(t, st.Addr)

	// When: playing X 0, O 4, X 1, O 5, X 2
	moves := []struct {
		c    *client.Client
		cell int
	}{
		{playerX, 0}, {playerO, 4}, {playerX, 1}, {playerO, 5}, {playerX, 2},
	}
	for i, move := range moves {
		require.NoError(t, move.c.Move(move.cell))

		if i == len(moves)-1 {
			break
		}

		// Then: every accepted move is broadcast to both players
		for _, c := range []*client.Client{playerX, playerO} {
			state := decodePayload[protocol.StatePayload](t, readAction(t, c, protocol.ActionState))
			assert.NotEqual(t, entity.MarkEmpty, state.Board[move.cell])
		}
	}

	// Then: the last move produces a win result for both players
	for _, c := range []*client.Client{playerX, playerO} {
		result := decodePayload[protocol.ResultPayload](t, readAction(t, c, protocol.ActionResult))
		assert.Equal(t, protocol.OutcomeWin, result.Outcome)
		assert.Equal(t, entity.MarkX, result.Winner)

		// Then: the server closes the connection, no message follows the result
		_, err := c.Read()
		require.Error(t, err)
	}
}

func TestServer_RejectedMoves(t *testing.T) {
	// Given: a running game
	_, st := suite.New(t)
	playerX, playerO := joinTwo(t, st.Addr)

	t.Run("O cannot move before X", func(t *testing.T) {
		require.NoError(t, playerO.Move(4))

		errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, playerO, protocol.ActionError))
		assert.Equal(t, protocol.ErrorKindNotYourTurn, errMsg.Kind)
	})

	t.Run("Cell out of range", func(t *testing.T) {
		require.NoError(t, playerX.Move(9))

		errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, playerX, protocol.ActionError))
		assert.Equal(t, protocol.ErrorKindOutOfRange, errMsg.Kind)
	})

	t.Run("Occupied cell", func(t *testing.T) {
		// Given: X took cell 0
		require.NoError(t, playerX.Move(0))
		readAction(t, playerX, protocol.ActionState)
		readAction(t, playerO, protocol.ActionState)

		// When: O plays the same cell
		require.NoError(t, playerO.Move(0))

		// Then: only O hears about it and may retry
		errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, playerO, protocol.ActionError))
		assert.Equal(t, protocol.ErrorKindCellOccupied, errMsg.Kind)

		// When: O retries with a free cell
		require.NoError(t, playerO.Move(4))

		// Then: the move is accepted
		state := decodePayload[protocol.StatePayload](t, readAction(t, playerO, protocol.ActionState))
		assert.Equal(t, entity.MarkO, state.Board[4])
	})
}

func TestServer_MoveBeforeJoin(t *testing.T) {
	// Given: a connected client that never joined
	_, st := suite.New(t)
	c, err := client.Dial(st.Addr)
	require.NoError(t, err)
	defer c.Close()

	// When: it submits a move
	require.NoError(t, c.Move(0))

	// Then: the move is refused, the connection stays open
	errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, c, protocol.ActionError))
	assert.Equal(t, protocol.ErrorKindSessionNotActive, errMsg.Kind)
}

func TestServer_ThirdJoinRefused(t *testing.T) {
	// Given: a third client connected before the session filled up
	_, st := suite.New(t)

	third, err := client.Dial(st.Addr)
	require.NoError(t, err)
	defer third.Close()

	joinTwo(t, st.Addr)

	// When: the third client joins a full session
	require.NoError(t, third.Join(""))

	// Then: the join is refused and the connection is closed
	errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, third, protocol.ActionError))
	assert.Equal(t, protocol.ErrorKindSessionNotActive, errMsg.Kind)

	_, err = third.Read()
	require.Error(t, err)
}

func TestServer_MalformedMessage(t *testing.T) {
	// Given: a raw connection
	_, st := suite.New(t)
	conn, err := net.Dial("tcp", st.Addr)
	require.NoError(t, err)
	defer conn.Close()

	// When: sending a line that is not a message
	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	// Then: the server answers protocol_error and drops the connection
	c := client.Wrap(conn)
	errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, c, protocol.ActionError))
	assert.Equal(t, protocol.ErrorKindProtocolError, errMsg.Kind)

	_, err = c.Read()
	require.Error(t, err)
}

func TestServer_DisconnectAborts(t *testing.T) {
	// Given: a game two plies in
	_, st := suite.New(t)
	playerX, playerO := joinTwo(t, st.Addr)

	require.NoError(t, playerX.Move(0))
	readAction(t, playerX, protocol.ActionState)
	readAction(t, playerO, protocol.ActionState)
	require.NoError(t, playerO.Move(4))
	readAction(t, playerX, protocol.ActionState)
	readAction(t, playerO, protocol.ActionState)

	// When: O drops the connection
	require.NoError(t, playerO.Close())

	// Then: X gets exactly one aborted result and then the stream ends
	result := decodePayload[protocol.ResultPayload](t, readAction(t, playerX, protocol.ActionResult))
	assert.Equal(t, protocol.OutcomeAborted, result.Outcome)
	assert.Equal(t, protocol.ReasonOpponentLeft, result.Reason)

	_, err := playerX.Read()
	require.Error(t, err)
}

func TestServer_Forfeit(t *testing.T) {
	// Given: a running game
	_, st := suite.New(t)
	playerX, playerO := joinTwo(t, st.Addr)

	// When: O forfeits
	require.NoError(t, playerO.Forfeit())

	// Then: both players see X win with the forfeit reason
	for _, c := range []*client.Client{playerX, playerO} {
		result := decodePayload[protocol.ResultPayload](t, readAction(t, c, protocol.ActionResult))
		assert.Equal(t, protocol.OutcomeWin, result.Outcome)
		assert.Equal(t, entity.MarkX, result.Winner)
		assert.Equal(t, protocol.ReasonForfeit, result.Reason)
	}
}

func TestServer_AuthGate(t *testing.T) {
	// Given: a server that requires a token on join
	ctx, st := suite.NewWithAuth(t)

	c, err := client.Dial(st.Addr)
	require.NoError(t, err)
	defer c.Close()

	t.Run("Join without a token is refused", func(t *testing.T) {
		require.NoError(t, c.Join(""))

		errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, c, protocol.ActionError))
		assert.Equal(t, protocol.ErrorKindBadAuth, errMsg.Kind)
	})

	t.Run("Registered player joins with its token", func(t *testing.T) {
		// Given: a registered account
		require.NoError(t, st.Auth.Register(ctx, "alice", "sekret"))

		// When: logging in over the wire
		require.NoError(t, c.Login("alice", "sekret"))
		token := decodePayload[protocol.TokenPayload](t, readAction(t, c, protocol.ActionLogin)).Token
		require.NotEmpty(t, token)

		// When: joining with the token
		require.NoError(t, c.Join(token))

		// Then: the slot is bound under the account name
		assigned := decodePayload[protocol.AssignedPayload](t, readAction(t, c, protocol.ActionAssigned))
		assert.Equal(t, entity.MarkX, assigned.Mark)
		assert.Equal(t, "alice", assigned.Player)
	})

	t.Run("Wrong password never yields a token", func(t *testing.T) {
		other, err := client.Dial(st.Addr)
		require.NoError(t, err)
		defer other.Close()

		require.NoError(t, other.Login("alice", "wrong"))

		errMsg := decodePayload[protocol.ErrorPayload](t, readAction(t, other, protocol.ActionError))
		assert.Equal(t, protocol.ErrorKindBadAuth, errMsg.Kind)
	})
}
