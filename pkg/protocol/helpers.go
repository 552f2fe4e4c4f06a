package protocol

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// =============================================================================
// Constructors
// =============================================================================

// NewAudioMessage creates an audio message from little-endian PCM16 mono
func NewAudioMessage(pcm []byte, sampleRate int) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(pcm),
	})
}

// NewTranscriptMessage creates a transcript message
func NewTranscriptMessage(text string, final bool) (*Message, error) {
	return NewMessage(TypeTranscript, TranscriptData{Text: text, Final: final})
}

// NewEmotionMessage creates an emotion message
func NewEmotionMessage(emotion face.Emotion, intensity float64) (*Message, error) {
	return NewMessage(TypeEmotion, EmotionData{Emotion: string(emotion), Intensity: &intensity})
}

// NewFlagsMessage creates a flags message
func NewFlagsMessage(flags FlagsData) (*Message, error) {
	return NewMessage(TypeFlags, flags)
}

// NewStateMessage creates a state message
func NewStateMessage(session string, snap face.Snapshot) (*Message, error) {
	return NewMessage(TypeState, StateData{Session: session, Snapshot: snap})
}

// NewFrameMessage creates a frame message from PNG bytes
func NewFrameMessage(width, height int, png []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "png",
		Data:    base64.StdEncoding.EncodeToString(png),
		FrameID: frameID,
	})
}

// NewReplyMessage creates a reply message
func NewReplyMessage(r ReplyData) (*Message, error) {
	return NewMessage(TypeReply, r)
}

// NewErrorMessage creates an error message
func NewErrorMessage(text string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: text})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Accessors
// =============================================================================

// GetAudioData extracts audio data from a message
func (m *Message) GetAudioData() (*AudioData, error) {
	var data AudioData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode decodes the base64 PCM
func (a *AudioData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// GetTranscriptData extracts transcript data from a message
func (m *Message) GetTranscriptData() (*TranscriptData, error) {
	var data TranscriptData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEmotionData extracts emotion data from a message
func (m *Message) GetEmotionData() (*EmotionData, error) {
	var data EmotionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFlagsData extracts flags from a message
func (m *Message) GetFlagsData() (*FlagsData, error) {
	var data FlagsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode decodes the base64 image
func (f *FrameData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetReplyData extracts reply data from a message
func (m *Message) GetReplyData() (*ReplyData, error) {
	var data ReplyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
