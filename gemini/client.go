// Package gemini adapts the Google Gemini API to the shapes the chat
// pipeline consumes: an ordered stream of text deltas followed by one
// GenerationResult carrying the full text and grounding metadata.
package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/Desarso/chatrelay/models"
)

// HistoryLimit bounds how many prior messages are sent as context;
// oldest turns are dropped first.
const HistoryLimit = 10

// errorFallbackText is the single synthetic delta emitted when the
// upstream generator fails mid-stream. The delta stream always
// terminates cleanly; failure signaling happens a layer up.
const errorFallbackText = "Error: Unable to generate response. Please try again."

// Client wraps the Gemini SDK client for one configured model.
type Client struct {
	client        *genai.Client
	model         string
	searchEnabled bool
}

// NewClient builds a Gemini-backed generator.
func NewClient(ctx context.Context, apiKey, model string, searchEnabled bool) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{client: client, model: model, searchEnabled: searchEnabled}, nil
}

// buildContents converts the truncated history plus the current
// message into Gemini contents.
func (c *Client) buildContents(message string, history []models.Message) []*genai.Content {
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	return contents
}

func (c *Client) generateConfig() *genai.GenerateContentConfig {
	if !c.searchEnabled {
		return nil
	}
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
}

// Stream drives a streaming generation. Deltas arrive on the first
// channel in generation order; after it closes, exactly one
// GenerationResult arrives on the second. Upstream errors become a
// single synthetic error delta, so consumers always see a cleanly
// terminated stream. The sequence is not restartable.
func (c *Client) Stream(ctx context.Context, message string, history []models.Message) (<-chan string, <-chan *models.GenerationResult) {
	deltaChan := make(chan string)
	resultChan := make(chan *models.GenerationResult, 1)

	go func() {
		defer close(resultChan)

		var full strings.Builder
		var metadata *genai.GroundingMetadata
		failed := false

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, c.buildContents(message, history), c.generateConfig()) {
			if err != nil {
				log.Printf("Error generating Gemini response: %v", err)
				failed = true
				break
			}
			for _, cand := range resp.Candidates {
				if cand.GroundingMetadata != nil {
					metadata = cand.GroundingMetadata
				}
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					full.WriteString(part.Text)
					select {
					case deltaChan <- part.Text:
					case <-ctx.Done():
						close(deltaChan)
						resultChan <- &models.GenerationResult{Text: full.String()}
						return
					}
				}
			}
		}

		if failed {
			select {
			case deltaChan <- errorFallbackText:
				full.WriteString(errorFallbackText)
			case <-ctx.Done():
			}
			close(deltaChan)
			resultChan <- &models.GenerationResult{Text: full.String()}
			return
		}

		close(deltaChan)

		grounding := convertGroundingMetadata(metadata, c.searchEnabled)
		text := full.String()
		if grounding.Grounded {
			text = InsertCitations(text, grounding.Supports)
		}
		resultChan <- &models.GenerationResult{Text: text, Grounding: grounding}
	}()

	return deltaChan, resultChan
}

// GenerateTitle produces a short label for a conversation from its
// first message. On generator failure it falls back to the first five
// words of the message.
func (c *Client) GenerateTitle(ctx context.Context, firstMessage string) string {
	snippet := firstMessage
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	prompt := fmt.Sprintf("Generate a short, descriptive title (max 50 characters) for a conversation that starts with: '%s'", snippet)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		log.Printf("Error generating conversation title: %v", err)
		return FallbackTitle(firstMessage)
	}

	title := CleanTitle(responseText(resp))
	if title == "" {
		return FallbackTitle(firstMessage)
	}
	return title
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// CleanTitle strips surrounding whitespace and quotes and truncates to
// 50 characters.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	runes := []rune(title)
	if len(runes) > 50 {
		title = string(runes[:50])
	}
	return title
}

// FallbackTitle deterministically derives a title from the first five
// whitespace-separated words of the message, with an ellipsis marker
// when the message had five or more words.
func FallbackTitle(firstMessage string) string {
	words := strings.Fields(firstMessage)
	suffix := ""
	if len(words) >= 5 {
		words = words[:5]
		suffix = "..."
	}
	return strings.Join(words, " ") + suffix
}
