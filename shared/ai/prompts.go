package ai

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// DefaultSummaryPrompt is used when no prompt file is given.
const DefaultSummaryPrompt = "Summarize the following video transcript concisely. " +
	"Focus on the key points, actionable advice, and main takeaways. " +
	"Use bullet points where appropriate. Keep the summary to 1-2 paragraphs."

// EditorSystemPrompt instructs the model to turn raw transcript text into prose.
const EditorSystemPrompt = `You are an expert transcript editor. Your task is to enhance this transcript for maximum readability while maintaining the core message.
IMPORTANT: Respond ONLY with the enhanced transcript. Do not include any explanations, headers, or phrases like "Here is the transcript."

Edit the transcript as if it were an interview prepared for print, where the reading audience is the priority. The result should read as if it had been written to be read rather than spoken.

Please:
1. Optimize for readability over verbatim accuracy:
   * Remove conversational artifacts and filler words (um, uh, like, you know)
   * Remove false starts, self-corrections and redundant phrases
   * Break up run-on sentences into clear, concise statements
2. Format the output consistently:
   * Keep any timestamp markers such as **[12:34]** exactly as they are and where they are
   * You are only seeing one chunk of a longer transcript, so do not add an introduction or conclusion
   * Use proper punctuation and capitalization
   * Add paragraph breaks for topic changes and never go more than four sentences without one`

// EditorUserPrefix precedes each chunk sent for enhancement.
const EditorUserPrefix = "Enhance the following transcript:\n\n"

const (
	bulletPlaceholder     = "{bullet_count}"
	minBullets            = 10
	secondsPerBullet      = 90
	defaultBulletDuration = 600
)

// LoadPrompt reads a prompt file, or returns fallback when path is empty.
func LoadPrompt(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}

// BulletCount is roughly one bullet per ninety seconds of video, at least ten.
func BulletCount(durationSeconds int) int {
	if durationSeconds <= 0 {
		durationSeconds = defaultBulletDuration
	}
	return max(minBullets, int(math.Ceil(float64(durationSeconds)/secondsPerBullet)))
}

// RenderSummaryPrompt substitutes {bullet_count} for a video of the given length.
func RenderSummaryPrompt(template string, durationSeconds int) string {
	return strings.ReplaceAll(template, bulletPlaceholder, strconv.Itoa(BulletCount(durationSeconds)))
}

// SummaryRequest builds the user prompt for one transcript.
func SummaryRequest(prompt, title, transcript string) string {
	return fmt.Sprintf("%s\n\nVideo title: %s\n\nTranscript:\n%s", prompt, title, transcript)
}
