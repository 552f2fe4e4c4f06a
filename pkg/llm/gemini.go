package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// generator is the part of *genai.GenerativeModel Gemini uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini classifies utterances with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  generator
	cfg    Config
	logger *slog.Logger
}

// NewGemini connects to Gemini. An API key or access token must be
// supplied through options; nothing is read from the environment here.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := applyOptions(opts)

	var clientOpt option.ClientOption
	switch {
	case cfg.APIKey != "":
		clientOpt = option.WithAPIKey(cfg.APIKey)
	case cfg.AccessToken != "":
		clientOpt = option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
	default:
		return nil, ErrNoCredentials
	}

	client, err := genai.NewClient(ctx, clientOpt)
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(cfg.Temperature)

	return &Gemini{
		client: client,
		model:  model,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "llm", "provider", providerGemini),
	}, nil
}

// Classify sends text to the model and parses the JSON reply.
func (g *Gemini) Classify(ctx context.Context, text string) (Reply, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	res, err := g.model.GenerateContent(ctx, genai.Text(Prompt(text)))
	if err != nil {
		return Reply{}, wrapGeminiError(err)
	}
	raw, err := extractText(res)
	if err != nil {
		return Reply{}, err
	}
	reply, err := ParseReply(raw)
	if err != nil {
		g.logger.Warn("unparseable reply", "error", err, "raw_len", len(raw))
		return Reply{}, err
	}
	g.logger.Debug("classified", "emotion", reply.Emotion, "intensity", reply.EmotionIntensity)
	return reply, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func extractText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil ||
		len(res.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}
	if t, ok := res.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(t), nil
	}
	return "", fmt.Errorf("llm: gemini reply has no text part")
}

func wrapGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: providerGemini}
	}
	return fmt.Errorf("llm [%s]: %w", providerGemini, err)
}
