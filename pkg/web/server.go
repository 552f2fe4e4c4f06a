// Package web serves the avatar dashboard: a JSON API over the session,
// PNG frames, WebSocket broadcasts of state and frames, and a WebSocket
// ingest endpoint for audio, transcripts and emotions.
package web

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-avatar/pkg/audio"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/contour"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/protocol"
	"github.com/teslashibe/go-avatar/pkg/render"
)

// DefaultBodyLimit allows image uploads to /api/contours.
const DefaultBodyLimit = 16 << 20

// Config configures the dashboard server.
type Config struct {
	Port    string
	Session *avatar.Session

	// Analyser receives ingest audio. Optional.
	Analyser *audio.Analyser

	// Detector traces uploaded images. Defaults to contour.Sobel.
	Detector contour.Detector

	// StaticDir is served at / when set.
	StaticDir string

	Logger *slog.Logger
}

// Server is the dashboard server.
type Server struct {
	app      *fiber.App
	port     string
	session  *avatar.Session
	analyser *audio.Analyser
	detector contour.Detector
	logger   *slog.Logger

	stateHub *hub.Hub
	frameHub *hub.Hub

	frameMu   sync.RWMutex
	lastFrame []byte
	frameW    int
	frameH    int

	ingestMessages atomic.Uint64
	ingestErrors   atomic.Uint64
}

// NewServer creates the server and wires it to the session.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detector := cfg.Detector
	if detector == nil {
		detector = contour.Sobel{}
	}
	s := &Server{
		port:     cfg.Port,
		session:  cfg.Session,
		analyser: cfg.Analyser,
		detector: detector,
		logger:   logger.With("component", "web"),
		stateHub: hub.New("state", logger),
		frameHub: hub.New("frames", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-avatar",
		DisableStartupMessage: true,
		BodyLimit:             DefaultBodyLimit,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/emotion", s.handleEmotion)
	api.Post("/flags", s.handleFlags)
	api.Post("/say", s.handleSay)
	api.Post("/contours", s.handleContours)
	api.Get("/frame.png", s.handleFrame)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	s.registerIngest(app)

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.session.OnSnapshot(s.broadcastState)
	s.session.OnExchange(s.broadcastExchange)

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the hubs and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.stateHub.Run(ctx)
	go s.frameHub.Run(ctx)
	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// Frame implements render.FrameSink: it keeps the latest frame as PNG and
// broadcasts it to frame subscribers.
func (s *Server) Frame(img image.Image, _ face.Snapshot, _ int) {
	data, err := render.EncodePNG(img)
	if err != nil {
		s.logger.Warn("encode frame", "error", err)
		return
	}
	b := img.Bounds()
	s.frameMu.Lock()
	s.lastFrame = data
	s.frameW, s.frameH = b.Dx(), b.Dy()
	s.frameMu.Unlock()

	if s.frameHub.ClientCount() > 0 {
		s.frameHub.BroadcastBinary(data)
	}
}

func (s *Server) latestFrame() ([]byte, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	if s.lastFrame == nil {
		return nil, false
	}
	return bytes.Clone(s.lastFrame), true
}

func (s *Server) broadcastState(snap face.Snapshot) {
	msg, err := protocol.NewStateMessage(s.session.ID().String(), snap)
	if err != nil {
		return
	}
	s.stateHub.BroadcastMessage(msg)
}

func (s *Server) broadcastExchange(x avatar.Exchange) {
	r := protocol.ReplyData{
		ID:        x.ID.String(),
		Text:      x.Text,
		Response:  x.Reply.Response,
		Emotion:   string(x.Reply.Emotion),
		Intensity: x.Reply.EmotionIntensity,
	}
	if x.Err != nil {
		r.Error = x.Err.Error()
	}
	msg, err := protocol.NewReplyMessage(r)
	if err != nil {
		return
	}
	s.stateHub.BroadcastMessage(msg)
}
