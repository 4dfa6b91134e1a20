// Package message defines the svglive control protocol.
//
// All messages are newline-delimited JSON, one request and one response per
// connection. Each message is exactly one line: <json>\n
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeListen         Type = "LISTEN"
	TypeStop           Type = "STOP"
	TypeAck            Type = "ACK"
	TypeError          Type = "ERROR"
)

// Status describes a running daemon, carried by STATUS_RESPONSE.
type Status struct {
	Version      string    `json:"version"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	State        string    `json:"state"`
	Backend      string    `json:"backend"`
	Renderer     string    `json:"renderer"`
	RendererPath string    `json:"renderer_path,omitempty"`

	DPI        int    `json:"dpi"`
	Background string `json:"background"`
	MaxBytes   int    `json:"max_bytes,omitempty"`
	Cache      bool   `json:"cache"`
	SaveDir    string `json:"save_dir,omitempty"`

	Pending    bool          `json:"pending"`
	InFlight   bool          `json:"in_flight"`
	LastHash   string        `json:"last_hash,omitempty"`
	LastWidth  int           `json:"last_width,omitempty"`
	LastHeight int           `json:"last_height,omitempty"`
	LastTook   time.Duration `json:"last_took,omitempty"`
	LastAt     time.Time     `json:"last_at,omitzero"`
	Converted  int           `json:"converted"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
	Saved      int           `json:"saved"`
	LastError  string        `json:"last_error,omitempty"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// ACK: the monitor state after a LISTEN or STOP
	State string `json:"state,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Errorf returns an ERROR message.
func Errorf(format string, args ...any) *Message {
	return &Message{Type: TypeError, Error: fmt.Sprintf(format, args...)}
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message decode: missing type")
	}
	return &m, nil
}

// Err returns the ERROR payload as an error, or nil for other types.
func (m *Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	return fmt.Errorf("daemon: %s", m.Error)
}
