// The client is a thin terminal shell around the game protocol: it reads
// commands from stdin, forwards them to the server and renders whatever the
// server reports. All rules live on the server side.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/client"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "server address")
	port := flag.String("port", "7777", "server port")
	flag.Parse()

	c, err := client.Dial(net.JoinHostPort(*addr, *port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot connect to server at %s:%s\n", *addr, *port)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Println("Connected to server")

	sh := &shell{client: c, done: make(chan struct{})}

	go sh.receiveLoop()
	go sh.inputLoop()

	<-sh.done
}

type shell struct {
	client *client.Client
	done   chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	mark  entity.Mark
	token string
}

func (that *shell) finish() {
	that.closeOnce.Do(func() { close(that.done) })
}

// receiveLoop prints every server message until the connection closes.
func (that *shell) receiveLoop() {
	defer that.finish()

	for {
		msg, err := that.client.Read()
		if err != nil {
			fmt.Println("Connection closed by server.")
			return
		}
		that.handleMessage(msg)
	}
}

func (that *shell) handleMessage(msg *protocol.Message) {
	switch msg.Action {
	case protocol.ActionRegister:
		fmt.Println("Registration successful.")

	case protocol.ActionLogin:
		var payload protocol.TokenPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			that.mu.Lock()
			that.token = payload.Token
			that.mu.Unlock()
		}
		fmt.Println("Login successful.")

	case protocol.ActionAssigned:
		var payload protocol.AssignedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		that.mu.Lock()
		that.mark = payload.Mark
		that.mu.Unlock()
		fmt.Printf("You play as %s.\n", payload.Mark)

	case protocol.ActionState:
		var payload protocol.StatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		renderBoard(payload.Board)
		that.mu.Lock()
		mine := that.mark == payload.Turn
		that.mu.Unlock()
		if mine {
			fmt.Println("It is your turn.")
		} else {
			fmt.Println("It is the opposing player's turn.")
		}

	case protocol.ActionResult:
		var payload protocol.ResultPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		switch payload.Outcome {
		case protocol.OutcomeWin:
			if payload.Reason == protocol.ReasonForfeit {
				fmt.Printf("Game ended. %s won by forfeit.\n", payload.Winner)
			} else {
				fmt.Printf("Game ended. %s won!\n", payload.Winner)
			}
		case protocol.OutcomeDraw:
			fmt.Println("Game ended in a draw.")
		case protocol.OutcomeAborted:
			fmt.Println("Game aborted: the opposing player left.")
		}

	case protocol.ActionError:
		var payload protocol.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		fmt.Printf("Error (%s): %s\n", payload.Kind, payload.Message)
	}
}

// inputLoop reads commands until stdin closes or the user quits.
func (that *shell) inputLoop() {
	defer that.finish()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Commands: register, login, join, move <cell>, forfeit, quit")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch strings.ToLower(fields[0]) {
		case "quit":
			return

		case "register":
			username, password := promptCredentials(scanner)
			err = that.client.Register(username, password)

		case "login":
			username, password := promptCredentials(scanner)
			err = that.client.Login(username, password)

		case "join":
			that.mu.Lock()
			token := that.token
			that.mu.Unlock()
			err = that.client.Join(token)

		case "move":
			if len(fields) != 2 {
				fmt.Println("Usage: move <cell 0-8>")
				continue
			}
			cell, convErr := strconv.Atoi(fields[1])
			if convErr != nil {
				fmt.Println("Error: cell must be an integer between 0 and 8.")
				continue
			}
			err = that.client.Move(cell)

		case "forfeit":
			err = that.client.Forfeit()

		default:
			fmt.Printf("Unknown command: %s\n", fields[0])
			continue
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to send command: %v\n", err)
			return
		}
	}
}

func promptCredentials(scanner *bufio.Scanner) (string, string) {
	fmt.Print("Enter username: ")
	if !scanner.Scan() {
		return "", ""
	}
	username := strings.TrimSpace(scanner.Text())

	fmt.Print("Enter password: ")
	if !scanner.Scan() {
		return "", ""
	}

	return username, strings.TrimSpace(scanner.Text())
}

func renderBoard(board [9]entity.Mark) {
	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			mark := board[row*3+col]
			if mark == entity.MarkEmpty {
				mark = " "
			}
			cells[col] = string(mark)
		}
		fmt.Printf(" %s\n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Println("-----------")
		}
	}
}
