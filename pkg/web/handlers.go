package web

import (
	"bytes"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-avatar/pkg/contour"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/llm"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

// EmotionRequest is the body of POST /api/emotion.
type EmotionRequest struct {
	Emotion   string   `json:"emotion"`
	Intensity *float64 `json:"intensity"`
}

// SayRequest is the body of POST /api/say.
type SayRequest struct {
	Text string `json:"text"`
}

// ContoursResponse is returned by POST /api/contours.
type ContoursResponse struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Count  int             `json:"count"`
	Points []contour.Point `json:"points"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unavailable(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
}

// handleState returns the current face snapshot
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(protocol.StateData{Session: s.session.ID().String(), Snapshot: s.session.Snapshot()})
}

// handleEmotion queues an emotion. Unknown labels show as neutral.
func (s *Server) handleEmotion(c *fiber.Ctx) error {
	var req EmotionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	intensity := llm.DefaultIntensity
	if req.Intensity != nil {
		intensity = *req.Intensity
	}
	e := face.ParseEmotion(req.Emotion)
	if err := s.session.SetEmotion(e, intensity); err != nil {
		return unavailable(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"emotion":   e,
		"intensity": face.Clamp01(intensity),
	})
}

// handleFlags queues activity flag changes
func (s *Server) handleFlags(c *fiber.Ctx) error {
	var req protocol.FlagsData
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := s.applyFlags(req); err != nil {
		return unavailable(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) applyFlags(f protocol.FlagsData) error {
	if f.Listening != nil {
		if err := s.session.SetListening(*f.Listening); err != nil {
			return err
		}
	}
	if f.Thinking != nil {
		if err := s.session.SetThinking(*f.Thinking); err != nil {
			return err
		}
	}
	if f.Speaking != nil {
		if err := s.session.SetSpeaking(*f.Speaking); err != nil {
			return err
		}
	}
	return nil
}

// handleSay queues a user utterance; the reply arrives on /ws/state
func (s *Server) handleSay(c *fiber.Ctx) error {
	var req SayRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Text == "" {
		return badRequest(c, "text required")
	}
	id, err := s.session.Say(req.Text)
	if err != nil {
		return unavailable(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id.String()})
}

// handleContours traces an uploaded image. The image is the multipart
// field "image" or the raw body.
func (s *Server) handleContours(c *fiber.Ctx) error {
	threshold := contour.DefaultThreshold
	if v := c.Query("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			return badRequest(c, "invalid threshold")
		}
		threshold = t
	}

	data, err := uploadedImage(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	img, err := contour.Decode(data)
	if err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": err.Error()})
	}
	points, err := contour.Trace(s.detector, img, threshold)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	b := img.Bounds()

	if c.Query("format") == "png" {
		var buf bytes.Buffer
		if err := contour.EncodePNG(&buf, contour.Render(points, b.Dx(), b.Dy())); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(buf.Bytes())
	}
	if points == nil {
		points = []contour.Point{}
	}
	return c.JSON(ContoursResponse{Width: b.Dx(), Height: b.Dy(), Count: len(points), Points: points})
}

func uploadedImage(c *fiber.Ctx) ([]byte, error) {
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	body := c.Body()
	if len(body) == 0 {
		return nil, contour.ErrEmptyImage
	}
	return bytes.Clone(body), nil
}

// handleFrame returns the latest rendered frame
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data, ok := s.latestFrame()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no frame rendered yet"})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleStats reports hub and ingest counters
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"session":         s.session.ID().String(),
		"state_clients":   s.stateHub.ClientCount(),
		"frame_clients":   s.frameHub.ClientCount(),
		"ingest_messages": s.ingestMessages.Load(),
		"ingest_errors":   s.ingestErrors.Load(),
	})
}

// handleStateWS sends the current state, then streams state and replies
func (s *Server) handleStateWS(c *websocket.Conn) {
	msg, err := protocol.NewStateMessage(s.session.ID().String(), s.session.Snapshot())
	if err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}
	hub.NewClient(s.stateHub, c).Run()
}

// handleFramesWS streams PNG frames as binary messages
func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.frameHub, c).Run()
}
