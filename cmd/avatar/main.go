// Command avatar runs an animated avatar face: a render loop, the
// conversation session and the dashboard server. Speech audio can come
// from a WAV file, a PCM WebSocket feed, an RTP/Opus stream or dashboard
// ingest clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/analysis"
	"github.com/teslashibe/go-avatar/pkg/audio"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
	"github.com/teslashibe/go-avatar/pkg/render"
	"github.com/teslashibe/go-avatar/pkg/speech"
	"github.com/teslashibe/go-avatar/pkg/web"
)

type options struct {
	port        string
	fps         int
	width       int
	height      int
	mode        string
	analysis    string
	watch       bool
	wav         string
	audioWS     string
	rtp         string
	ingestAudio bool
	resolver    string
	static      string
	debug       bool
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "avatar: .env: %v\n", err)
		os.Exit(1)
	}
	env := config.Load()
	opts := parseFlags(env)

	level := env.LogLevel
	if opts.debug {
		level = "debug"
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, env); err != nil {
		log.Error("avatar stopped", "error", err)
		os.Exit(1)
	}
}

func parseFlags(env config.Env) options {
	var o options
	flag.StringVar(&o.port, "port", env.Port, "Dashboard port")
	flag.IntVar(&o.fps, "fps", render.DefaultFPS, "Frames per second")
	flag.IntVar(&o.width, "width", 400, "Frame width")
	flag.IntVar(&o.height, "height", 400, "Frame height")
	flag.StringVar(&o.mode, "render", string(render.ModeAuto), "Renderer: auto, mesh, canvas")
	flag.StringVar(&o.analysis, "analysis", "", "Face analysis JSON (path or URL)")
	flag.BoolVar(&o.watch, "watch", false, "Reload -analysis when the file changes")
	flag.StringVar(&o.wav, "wav", "", "Play a WAV file as speech audio")
	flag.StringVar(&o.audioWS, "audio-ws", "", "WebSocket URL streaming PCM16 mono audio")
	flag.StringVar(&o.rtp, "rtp", "", "UDP address receiving RTP/Opus audio, e.g. :5004")
	flag.BoolVar(&o.ingestAudio, "ingest-audio", false, "Accept audio from /ws/ingest clients")
	flag.StringVar(&o.resolver, "resolver", "last-write", "Parameter conflict resolver: last-write, blend, priority")
	flag.StringVar(&o.static, "static", "", "Directory served at /")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return o
}

func run(parent context.Context, o options, env config.Env) error {
	logger := log.L()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	resolver, err := face.ParseResolver(o.resolver)
	if err != nil {
		return err
	}

	baseline := face.BaselineSource(face.StaticBaseline(face.DefaultBaseline()))
	if o.analysis != "" {
		doc, err := analysis.Load(ctx, o.analysis)
		if err != nil {
			logger.Warn("analysis unavailable, using default baseline", "error", err)
		} else {
			baseline = doc
			logger.Info("analysis loaded", "landmarks", doc.LandmarksCount)
		}
	}

	classifier, closeClassifier, err := newClassifier(ctx, env, logger)
	if err != nil {
		return err
	}
	defer closeClassifier()

	store := face.NewStore(baseline.Baseline(), face.WithResolver(resolver))
	defer store.Close()

	session := avatar.New(
		avatar.WithStore(store),
		avatar.WithBaseline(baseline),
		avatar.WithClassifier(classifier),
		avatar.WithLogger(logger),
	)

	var analyser *audio.Analyser
	if o.wav != "" || o.audioWS != "" || o.rtp != "" || o.ingestAudio {
		analyser = audio.NewAnalyser(audio.DefaultWindow)
	}

	rcfg := render.DefaultConfig()
	rcfg.Width, rcfg.Height = o.width, o.height
	rcfg.Mode = render.Mode(o.mode)
	rcfg.Logger = logger
	renderer, err := render.New(rcfg)
	if err != nil {
		return err
	}
	defer renderer.Close()

	srv := web.NewServer(web.Config{
		Port:      o.port,
		Session:   session,
		Analyser:  analyser,
		StaticDir: o.static,
		Logger:    logger,
	})
	loop := render.NewLoop(renderer, session, o.fps, srv, logger)

	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("component failed", "component", name, "error", err)
			}
		}()
	}

	spawn("session", session.Run)
	spawn("render", loop.Run)

	if o.watch && o.analysis != "" && !isURL(o.analysis) {
		spawn("analysis", func(ctx context.Context) error {
			return analysis.Watch(ctx, o.analysis, func(d *analysis.Document, err error) {
				if err != nil {
					logger.Warn("analysis reload failed", "error", err)
					return
				}
				if err := session.SetBaseline(d.Baseline()); err != nil {
					logger.Warn("baseline update dropped", "error", err)
				}
			})
		})
	}

	if analyser != nil {
		startAudio(ctx, o, analyser, logger, spawn)
		sampler := speech.NewSampler(analyser, store, audio.DefaultWindow, logger)
		spawn("sampler", func(ctx context.Context) error {
			ticker := time.NewTicker(time.Second / time.Duration(max(o.fps, 1)))
			defer ticker.Stop()
			return sampler.Run(ctx, ticker.C)
		})
	}

	err = srv.Start(ctx)
	cancel()
	wg.Wait()
	if parent.Err() != nil {
		return nil
	}
	return err
}

func startAudio(ctx context.Context, o options, a *audio.Analyser, logger *slog.Logger, spawn func(string, func(context.Context) error)) {
	if o.wav != "" {
		spawn("wav", func(ctx context.Context) error {
			clip, err := audio.OpenWAV(o.wav)
			if err != nil {
				return err
			}
			logger.Info("playing wav", "path", o.wav, "duration", clip.Duration())
			return audio.Play(ctx, clip, a, 20*time.Millisecond)
		})
	}
	if o.audioWS != "" {
		spawn("audio-ws", func(ctx context.Context) error {
			src, err := audio.DialWebSocket(ctx, o.audioWS, a, logger)
			if err != nil {
				return err
			}
			defer src.Close()
			return src.Run(ctx)
		})
	}
	if o.rtp != "" {
		spawn("rtp", func(ctx context.Context) error {
			dec, err := audio.NewOpusDecoder()
			if err != nil {
				return err
			}
			r, err := audio.NewRTPOpus(dec, a, logger)
			if err != nil {
				return err
			}
			return r.ListenUDP(ctx, o.rtp)
		})
	}
}

// newClassifier builds Gemini with the keyword heuristic as fallback, or
// the heuristic alone when no credentials are configured.
func newClassifier(ctx context.Context, env config.Env, logger *slog.Logger) (llm.Classifier, func(), error) {
	if !env.HasGemini() {
		logger.Info("no Gemini credentials, using keyword classifier")
		return llm.Keyword{}, func() {}, nil
	}
	gemini, err := llm.NewGemini(ctx,
		llm.WithAPIKey(env.GeminiAPIKey),
		llm.WithAccessToken(env.GeminiAccessToken),
		llm.WithModel(env.GeminiModel),
		llm.WithTimeout(env.LLMTimeout),
		llm.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	chain, err := llm.NewChain(logger, gemini, llm.Keyword{})
	if err != nil {
		gemini.Close()
		return nil, nil, err
	}
	return chain, func() { gemini.Close() }, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
