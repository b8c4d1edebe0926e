// Package mockup asks the image-generation collaborator to render the
// suggested fix applied to the original friction frame.
package mockup

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
)

// ErrNotConfigured is returned when no API key is set; the caller skips
// mockup enrichment for the event.
var ErrNotConfigured = fmt.Errorf("mockup: API key not configured")

const mockupPrompt = `You are a UI/UX designer. This screenshot shows a real app interface.

Problem identified: %s
Suggested fix: %s

Generate a modified version of this screenshot that applies the suggested fix.
Keep the overall layout and design language identical — only modify the specific
element mentioned. Make the change look natural and production-ready.`

// Client talks to the mockup-generation collaborator.
type Client struct {
	cfg    config.MockupConfig
	client *http.Client
	log    *slog.Logger
}

// NewClient creates a mockup client.
func NewClient(cfg config.MockupConfig, log *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    log.With("component", "mockup"),
	}
}

// Generate renders the fix applied to the frame and writes the result
// next to the original. Returns the mockup image path.
func (c *Client) Generate(ctx context.Context, framePath, problem, fix string) (string, error) {
	apiKey := os.Getenv(c.cfg.APIKeyEnv)
	if apiKey == "" {
		return "", ErrNotConfigured
	}

	imageData, err := os.ReadFile(framePath)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}

	reqBody := generateRequest{
		Model:  c.cfg.Model,
		Prompt: fmt.Sprintf(mockupPrompt, problem, fix),
		Image:  base64.StdEncoding.EncodeToString(imageData),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/images/edits"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gr.Data) == 0 || gr.Data[0].B64JSON == "" {
		return "", fmt.Errorf("no image in response")
	}

	rendered, err := base64.StdEncoding.DecodeString(gr.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	mockupPath := mockupPathFor(framePath)
	if err := os.WriteFile(mockupPath, rendered, 0o644); err != nil {
		return "", fmt.Errorf("write mockup: %w", err)
	}

	c.log.Info("mockup generated", "path", mockupPath)
	return mockupPath, nil
}

// mockupPathFor derives the mockup output path from the frame path.
func mockupPathFor(framePath string) string {
	ext := filepath.Ext(framePath)
	return strings.TrimSuffix(framePath, ext) + "_mockup.png"
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}
