package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"channel-digest/shared/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// echoGenerator upper-cases the chunk that follows the editor prefix.
type echoGenerator struct {
	mu       sync.Mutex
	requests []Request
	failOn   string
}

func (g *echoGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	body := strings.TrimPrefix(req.Prompt, EditorUserPrefix)
	if g.failOn != "" && strings.Contains(body, g.failOn) {
		return "", errors.New("model refused")
	}
	return strings.ToUpper(body) + "\n", nil
}

func TestSplitChunks(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, SplitChunks("   ", 10))
	})

	t.Run("FitsInOne", func(t *testing.T) {
		assert.Equal(t, []string{"short text"}, SplitChunks("short text", 100))
	})

	t.Run("PrefersParagraphs", func(t *testing.T) {
		text := "alpha beta\n\ngamma delta\n\nepsilon"
		assert.Equal(t, []string{"alpha beta", "gamma delta", "epsilon"}, SplitChunks(text, 12))
	})

	t.Run("FallsBackToSpaces", func(t *testing.T) {
		chunks := SplitChunks("one two three four five", 9)
		assert.Equal(t, []string{"one two", "three", "four five"}, chunks)
	})

	t.Run("HardCutKeepsRunes", func(t *testing.T) {
		chunks := SplitChunks("ééééé", 3)
		for _, c := range chunks {
			assert.True(t, len(c) <= 3)
			assert.Equal(t, c, strings.ToValidUTF8(c, "?"))
		}
		assert.Equal(t, "ééééé", strings.Join(chunks, ""))
	})

	t.Run("NoLossOfWords", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 500; i++ {
			fmt.Fprintf(&b, "word%d ", i)
			if i%40 == 39 {
				b.WriteString("\n\n")
			}
		}
		chunks := SplitChunks(b.String(), 200)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 200)
		}
		assert.Equal(t, strings.Fields(b.String()), strings.Fields(strings.Join(chunks, " ")))
	})
}

func TestEnhancerKeepsChunkOrder(t *testing.T) {
	gen := &echoGenerator{}
	enhancer := NewEnhancer(gen, 3, logging.NewNop())
	enhancer.chunkSize = 12

	out, err := enhancer.Enhance(context.Background(), "alpha beta\n\ngamma delta\n\nepsilon")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA BETA\n\nGAMMA DELTA\n\nEPSILON", out)

	require.Len(t, gen.requests, 3)
	for _, req := range gen.requests {
		assert.Equal(t, EditorSystemPrompt, req.System)
	}
}

func TestEnhancerFailure(t *testing.T) {
	gen := &echoGenerator{failOn: "gamma"}
	enhancer := NewEnhancer(gen, 2, logging.NewNop())
	enhancer.chunkSize = 12

	_, err := enhancer.Enhance(context.Background(), "alpha beta\n\ngamma delta\n\nepsilon")
	assert.ErrorContains(t, err, "model refused")
}

// gatedEditor holds every chunk until release is closed and records the highest
// number of chunks in flight at once.
type gatedEditor struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (g *gatedEditor) Generate(ctx context.Context, req Request) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return strings.TrimPrefix(req.Prompt, EditorUserPrefix), nil
}

func TestEnhancerNeverExceedsConcurrency(t *testing.T) {
	gen := &gatedEditor{release: make(chan struct{})}
	enhancer := NewEnhancer(gen, 2, logging.NewNop())
	enhancer.chunkSize = 12
	text := "p1 one\n\np2 two\n\np3 three\n\np4 four\n\np5 five\n\np6 six"

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := enhancer.Enhance(context.Background(), text)
		done <- outcome{out, err}
	}()

	require.Eventually(t, func() bool { return gen.inFlight.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, gen.inFlight.Load())
	close(gen.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, text, res.out)
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}

func TestBulletCount(t *testing.T) {
	assert.Equal(t, 10, BulletCount(0))
	assert.Equal(t, 10, BulletCount(300))
	assert.Equal(t, 10, BulletCount(900))
	assert.Equal(t, 11, BulletCount(901))
	assert.Equal(t, 40, BulletCount(3600))
}

func TestRenderSummaryPrompt(t *testing.T) {
	assert.Equal(t, "Give 20 bullets.", RenderSummaryPrompt("Give {bullet_count} bullets.", 1800))
	assert.Equal(t, DefaultSummaryPrompt, RenderSummaryPrompt(DefaultSummaryPrompt, 1800))
	assert.Equal(t, "P\n\nVideo title: T\n\nTranscript:\nbody", SummaryRequest("P", "T", "body"))
}

func TestLoadPrompt(t *testing.T) {
	got, err := LoadPrompt("", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Find outliers.\n"), 0644))
	got, err = LoadPrompt(path, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "Find outliers.", got)

	_, err = LoadPrompt(filepath.Join(dir, "missing.txt"), "fallback")
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0644))
	_, err = LoadPrompt(empty, "fallback")
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("generate content: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"})))
	assert.True(t, IsTransient(&genai.APIError{Code: 503}))
	assert.False(t, IsTransient(genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}))
	assert.False(t, IsTransient(ErrEmptyResponse))
	assert.False(t, IsTransient(context.Canceled))
}
