// Package vision sends friction-spike screenshots to the visual-diagnosis
// collaborator and extracts the struggling UI element and screen name.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moglabs/lumina/internal/config"
	"github.com/moglabs/lumina/internal/domain"
)

const visualPrompt = `You are a UX analyst. This screenshot was captured at the exact moment a user
expressed frustration or confusion during a usability test.

Context: %s

Identify:
1. The specific UI element the user is most likely struggling with
2. The page or screen name

Respond in this exact JSON format:
{"detected_element": "<element name>", "page": "<page/screen name>", "description": "<brief explanation of what's wrong>"}`

// Client talks to the visual-diagnosis collaborator. When no API key is
// configured, or the response is not well-formed, it degrades to an
// "Unknown" placeholder instead of failing the pipeline.
type Client struct {
	cfg    config.VisionConfig
	client *http.Client
	log    *slog.Logger
}

// NewClient creates a vision client.
func NewClient(cfg config.VisionConfig, log *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    log.With("component", "vision"),
	}
}

func placeholder(description string) domain.VisualAnalysis {
	return domain.VisualAnalysis{
		DetectedElement: "Unknown Element",
		Page:            "Unknown Page",
		Description:     description,
	}
}

// AnalyzeScreenshot submits a frame plus free-text context and returns the
// detected element, page and description.
func (c *Client) AnalyzeScreenshot(ctx context.Context, imagePath, contextText string) (domain.VisualAnalysis, error) {
	apiKey := os.Getenv(c.cfg.APIKeyEnv)
	if apiKey == "" {
		c.log.Warn("no API key set, returning placeholder analysis", "env", c.cfg.APIKeyEnv)
		return placeholder("visual analysis API key not configured; analysis skipped"), nil
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("read frame: %w", err)
	}

	mimeType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(imagePath), ".png") {
		mimeType = "image/png"
	}
	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	if contextText == "" {
		contextText = "No additional context."
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageRef{URL: imageURL}},
				{Type: "text", Text: fmt.Sprintf(visualPrompt, contextText)},
			},
		}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.VisualAnalysis{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return domain.VisualAnalysis{}, fmt.Errorf("empty choices in response")
	}

	return parseAnalysis(cr.Choices[0].Message.Content, c.log), nil
}

// parseAnalysis tolerates markdown fences; a reply that still fails to
// parse becomes a placeholder carrying the raw text.
func parseAnalysis(text string, log *slog.Logger) domain.VisualAnalysis {
	text = stripFences(text)

	var parsed struct {
		DetectedElement string `json:"detected_element"`
		Page            string `json:"page"`
		Description     string `json:"description"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		log.Warn("malformed visual analysis response", "error", err)
		if len(text) > 200 {
			text = text[:200]
		}
		return placeholder(text)
	}

	out := domain.VisualAnalysis{
		DetectedElement: parsed.DetectedElement,
		Page:            parsed.Page,
		Description:     parsed.Description,
	}
	if out.DetectedElement == "" {
		out.DetectedElement = "Unknown Element"
	}
	if out.Page == "" {
		out.Page = "Unknown Page"
	}
	return out
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

type imageRef struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
