// Package hub fans avatar state and rendered frames out to websocket
// subscribers. One goroutine owns the client set; producers only send on
// channels.
package hub

import "github.com/teslashibe/go-avatar/pkg/protocol"

// Kind selects the websocket frame type a Message is written with.
type Kind int

const (
	// Text messages carry protocol JSON envelopes.
	Text Kind = iota
	// Binary messages carry PNG frames.
	Binary
)

// Message is one queued broadcast.
type Message struct {
	Kind Kind
	Data []byte
}

// TextMessage wraps already-encoded JSON.
func TextMessage(data []byte) Message {
	return Message{Kind: Text, Data: data}
}

// BinaryMessage wraps raw bytes.
func BinaryMessage(data []byte) Message {
	return Message{Kind: Binary, Data: data}
}

// FromProtocol encodes a protocol envelope as a text message.
func FromProtocol(m *protocol.Message) (Message, error) {
	data, err := m.Bytes()
	if err != nil {
		return Message{}, err
	}
	return TextMessage(data), nil
}
