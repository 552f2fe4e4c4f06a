package web

import (
	"errors"
	"fmt"
	"time"

	cws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/audio"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

// ErrNoAnalyser is returned for audio messages when no analyser is wired.
var ErrNoAnalyser = errors.New("web: audio ingest not configured")

func (s *Server) registerIngest(app *fiber.App) {
	app.Get("/ws/ingest", cws.New(s.handleIngest))
}

// handleIngest reads protocol messages from a client and feeds them to the
// session. Invalid messages are answered with an error message and do not
// close the connection.
func (s *Server) handleIngest(c *cws.Conn) {
	id := uuid.NewString()
	logger := s.logger.With("ingest", id)
	logger.Info("ingest client connected")
	defer logger.Info("ingest client disconnected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.ingestMessages.Add(1)

		reply, err := s.ingest(data)
		if err != nil {
			s.ingestErrors.Add(1)
			logger.Debug("rejected message", "error", err)
			reply, _ = protocol.NewErrorMessage(err.Error())
		}
		if reply == nil {
			continue
		}
		out, err := reply.Bytes()
		if err != nil {
			continue
		}
		if err := c.WriteMessage(cws.TextMessage, out); err != nil {
			return
		}
	}
}

// ingest applies one raw message and returns an optional reply.
func (s *Server) ingest(data []byte) (*protocol.Message, error) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return nil, err
	}
	return s.dispatch(msg)
}

func (s *Server) dispatch(msg *protocol.Message) (*protocol.Message, error) {
	switch msg.Type {
	case protocol.TypeAudio:
		d, err := msg.GetAudioData()
		if err != nil {
			return nil, err
		}
		return nil, s.ingestAudio(d)

	case protocol.TypeTranscript:
		d, err := msg.GetTranscriptData()
		if err != nil {
			return nil, err
		}
		return nil, s.session.Transcript(d.Text, d.Final)

	case protocol.TypeEmotion:
		d, err := msg.GetEmotionData()
		if err != nil {
			return nil, err
		}
		return nil, s.session.SetEmotion(face.ParseEmotion(d.Emotion), d.IntensityOr(llm.DefaultIntensity))

	case protocol.TypeFlags:
		d, err := msg.GetFlagsData()
		if err != nil {
			return nil, err
		}
		return nil, s.applyFlags(*d)

	case protocol.TypePing:
		d, err := msg.GetPingData()
		if err != nil {
			return nil, err
		}
		ts := d.Timestamp
		if ts == 0 {
			ts = msg.Timestamp
		}
		return protocol.NewPongMessage(d.ID, ts, time.Now().UnixMilli())
	}
	return nil, fmt.Errorf("unsupported message type %q", msg.Type)
}

func (s *Server) ingestAudio(d *protocol.AudioData) error {
	if s.analyser == nil {
		return ErrNoAnalyser
	}
	if d.Format != "" && d.Format != "pcm16" {
		return fmt.Errorf("%w: %s", audio.ErrUnsupportedCodec, d.Format)
	}
	pcm, err := d.Decode()
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	s.analyser.WritePCM(audio.Downmix(audio.PCM16LE(pcm), d.Channels))
	return nil
}

