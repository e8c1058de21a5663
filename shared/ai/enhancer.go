package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize keeps each enhancement call comfortably inside the output budget.
const DefaultChunkSize = 8000

// Enhancer rewrites transcript text for readability, chunk by chunk.
type Enhancer struct {
	gen         Generator
	chunkSize   int
	concurrency int
	logger      *slog.Logger
}

func NewEnhancer(gen Generator, concurrency int, logger *slog.Logger) *Enhancer {
	if concurrency <= 0 {
		concurrency = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{gen: gen, chunkSize: DefaultChunkSize, concurrency: concurrency, logger: logger}
}

// Enhance splits text into chunks, edits them concurrently and rejoins them in order.
func (e *Enhancer) Enhance(ctx context.Context, text string) (string, error) {
	chunks := SplitChunks(text, e.chunkSize)
	if len(chunks) == 0 {
		return "", nil
	}

	results := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := e.gen.Generate(gctx, Request{
				System:          EditorSystemPrompt,
				Prompt:          EditorUserPrefix + chunk,
				MaxOutputTokens: 8192,
			})
			if err != nil {
				return fmt.Errorf("enhance chunk %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = strings.TrimSpace(out)
			e.logger.Debug("enhanced chunk", slog.Int("chunk", i+1), slog.Int("chunks", len(chunks)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(results, "\n\n"), nil
}

// SplitChunks cuts text into pieces of at most size bytes, preferring paragraph
// breaks, then line breaks, then spaces. A single word longer than size is cut hard.
func SplitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := lastBreak(text[:size+1])
		if cut <= 0 {
			cut = size
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
		}
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func lastBreak(window string) int {
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i
		}
	}
	return -1
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
