// Package protocol defines the WebSocket messages exchanged between the
// avatar and its clients: ingest clients push audio, transcripts, emotions
// and flags; dashboard clients receive state, frames and replies.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → avatar
	TypeAudio      MessageType = "audio"      // Microphone PCM
	TypeTranscript MessageType = "transcript" // Recognised speech
	TypeEmotion    MessageType = "emotion"    // Emotion classification
	TypeFlags      MessageType = "flags"      // Listening/thinking/speaking

	// Avatar → client
	TypeState MessageType = "state" // Face snapshot
	TypeFrame MessageType = "frame" // Rendered frame
	TypeReply MessageType = "reply" // Answered utterance
	TypeError MessageType = "error" // Rejected ingest message

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for every WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → avatar
// =============================================================================

// AudioData carries microphone audio
type AudioData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g. 16000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// TranscriptData carries recognised speech. Interim results have Final
// unset.
type TranscriptData struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// EmotionData carries an emotion classification. Intensity is optional.
type EmotionData struct {
	Emotion   string   `json:"emotion"`
	Intensity *float64 `json:"intensity,omitempty"`
}

// IntensityOr returns the intensity, or def when the sender omitted it.
func (d EmotionData) IntensityOr(def float64) float64 {
	if d.Intensity == nil {
		return def
	}
	return *d.Intensity
}

// FlagsData toggles activity flags. Nil fields are left unchanged.
type FlagsData struct {
	Listening *bool `json:"listening,omitempty"`
	Thinking  *bool `json:"thinking,omitempty"`
	Speaking  *bool `json:"speaking,omitempty"`
}

// =============================================================================
// Avatar → client
// =============================================================================

// StateData is a face snapshot
type StateData struct {
	Session string `json:"session,omitempty"`
	face.Snapshot
}

// FrameData carries one rendered frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "png"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// ReplyData reports an answered utterance
type ReplyData struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Response  string  `json:"response"`
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Error     string  `json:"error,omitempty"`
}

// ErrorData explains a rejected message
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Bidirectional
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
