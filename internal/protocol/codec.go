package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage marks an inbound line that is not a valid message.
// Transport treats it as fatal for that connection.
var ErrMalformedMessage = errors.New("malformed message")

// WriteMessage - writes one message as a single JSON line and flushes it.
func WriteMessage(writer *bufio.Writer, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err = writer.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush message: %w", err)
	}

	return nil
}

// ReadMessage - reads one newline-delimited message. Socket errors come back
// unwrapped from the reader; undecodable lines come back as
// ErrMalformedMessage.
func ReadMessage(reader *bufio.Reader) (*Message, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}

	var msg Message
	if err = json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	if msg.Action == "" {
		return nil, fmt.Errorf("%w: missing action", ErrMalformedMessage)
	}

	return &msg, nil
}
