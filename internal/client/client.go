// Package client implements the thin connection side of the game protocol:
// dial, send a command, receive the next server message. Rendering and
// prompting stay with the caller.
package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
)

type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMutex sync.Mutex
	writer     *bufio.Writer
}

// Dial - connects to a game server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}, nil
}

// Wrap - adopts an already-established connection.
func Wrap(conn net.Conn) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

func (that *Client) Close() error {
	return that.conn.Close()
}

// Read - blocks for the next server message.
func (that *Client) Read() (*protocol.Message, error) {
	return protocol.ReadMessage(that.reader)
}

func (that *Client) Register(username, password string) error {
	return that.send(protocol.ActionRegister, protocol.CredentialsPayload{Username: username, Password: password})
}

func (that *Client) Login(username, password string) error {
	return that.send(protocol.ActionLogin, protocol.CredentialsPayload{Username: username, Password: password})
}

// Join - claims a player slot; the token may be empty when the server does
// not require auth.
func (that *Client) Join(token string) error {
	return that.send(protocol.ActionJoin, protocol.TokenPayload{Token: token})
}

func (that *Client) Move(cell int) error {
	return that.send(protocol.ActionMove, protocol.MovePayload{Cell: cell})
}

func (that *Client) Forfeit() error {
	return that.send(protocol.ActionForfeit, nil)
}

func (that *Client) send(action string, payload any) error {
	msg, err := protocol.NewMessage(action, payload)
	if err != nil {
		return err
	}

	that.writeMutex.Lock()
	defer that.writeMutex.Unlock()

	return protocol.WriteMessage(that.writer, msg)
}
