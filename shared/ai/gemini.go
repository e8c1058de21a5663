package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"channel-digest/shared/config"
	"channel-digest/shared/retry"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text, which usually
// means content filtering or an inaccessible video.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is one text-generation call.
type Request struct {
	System          string
	Prompt          string
	MaxOutputTokens int32
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// VideoTranscriber produces a transcript directly from a video URL.
type VideoTranscriber interface {
	TranscribeVideo(ctx context.Context, videoURL string) (string, error)
}

// Gemini talks to the Gemini API. It is safe for concurrent use.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
	policy    retry.Policy
	logger    *slog.Logger
}

func NewGemini(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gemini, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.AI.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		model:     cfg.AI.Model,
		maxTokens: cfg.AI.MaxOutputTokens,
		policy:    retry.DefaultPolicy.WithAttempts(cfg.Pipeline.MaxAttempts),
		logger:    logger.With(slog.String("component", "gemini"), slog.String("model", cfg.AI.Model)),
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	genCfg := &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	if req.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	return g.generate(ctx, contents, genCfg)
}

const transcribePrompt = `Transcribe the spoken content of this video verbatim in its original language.
Respond ONLY with the transcript text. Do not summarize, translate, or add headings or commentary.
Start a new paragraph whenever the speaker or topic changes.`

// TranscribeVideo asks the model to transcribe a public video from its URL.
func (g *Gemini) TranscribeVideo(ctx context.Context, videoURL string) (string, error) {
	if videoURL == "" {
		return "", fmt.Errorf("video URL is required")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromURI(videoURL, "video/mp4"),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	// Transcripts of long videos need a far larger budget than summaries.
	return g.generate(ctx, contents, &genai.GenerateContentConfig{MaxOutputTokens: 65536})
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content, genCfg *genai.GenerateContentConfig) (string, error) {
	return retry.Do(ctx, g.policy, g.logger, IsTransient, func() (string, error) {
		result, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		text := strings.TrimSpace(result.Text())
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
}

// IsTransient classifies Gemini API errors by status code and falls back to the
// generic network classification.
func IsTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retry.TransientStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return retry.TransientStatus(apiErrPtr.Code)
	}
	return retry.IsTransient(err)
}
