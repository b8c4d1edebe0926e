// Package diagnosis obtains a structured root-cause diagnosis for one
// friction event from the language-model collaborator. A malformed
// response is a hard error for that event: the caller drops the event and
// moves on.
package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/moglabs/lumina/internal/config"
	"github.com/moglabs/lumina/internal/domain"
)

// ErrNotConfigured is returned when no API key is set. Diagnosis has no
// meaningful placeholder: without it the event cannot be curated.
var ErrNotConfigured = fmt.Errorf("diagnosis: API key not configured")

// Client talks to the language-model diagnosis collaborator.
type Client struct {
	cfg    config.DiagnosisConfig
	client *http.Client
	log    *slog.Logger
}

// NewClient creates a diagnosis client.
func NewClient(cfg config.DiagnosisConfig, log *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    log.With("component", "diagnosis"),
	}
}

// Diagnose sends the event plus recalled history to the model and parses
// the fixed-schema result into an Insight.
func (c *Client) Diagnose(ctx context.Context, event domain.FrictionEvent, recalled string) (domain.Insight, error) {
	apiKey := os.Getenv(c.cfg.APIKeyEnv)
	if apiKey == "" {
		return domain.Insight{}, ErrNotConfigured
	}

	prompt := buildPrompt(event, recalled)

	reqBody := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		ResponseFormat: &respFormat{
			Type: "json_object",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Insight{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Insight{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return parseInsight(respBody, event)
}

func parseInsight(body []byte, event domain.FrictionEvent) (domain.Insight, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return domain.Insight{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return domain.Insight{}, fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return domain.Insight{}, fmt.Errorf("empty choices in response")
	}

	content := stripFences(cr.Choices[0].Message.Content)

	var dj diagnosisJSON
	if err := json.Unmarshal([]byte(content), &dj); err != nil {
		return domain.Insight{}, fmt.Errorf("unmarshal diagnosis JSON: %w", err)
	}

	if domain.SeverityRank(dj.Severity) == 0 {
		return domain.Insight{}, fmt.Errorf("invalid severity %q", dj.Severity)
	}
	if !domain.Categories[dj.Category] {
		return domain.Insight{}, fmt.Errorf("invalid category %q", dj.Category)
	}
	if dj.RootCause == "" || dj.SuggestedFix == "" {
		return domain.Insight{}, fmt.Errorf("diagnosis missing root_cause or suggested_fix")
	}

	return domain.Insight{
		EventID:       event.EventID,
		FrictionEvent: event,
		RootCause:     dj.RootCause,
		Severity:      dj.Severity,
		Category:      dj.Category,
		SuggestedFix:  dj.SuggestedFix,
	}, nil
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

func buildPrompt(event domain.FrictionEvent, recalled string) string {
	if recalled == "" {
		recalled = "(No past learnings available yet — this is a fresh analysis.)"
	}

	var sb strings.Builder
	sb.WriteString("You are a UX diagnostician. Analyze this friction event from a user testing session and provide a structured diagnosis.\n\n")
	sb.WriteString("**Friction Event:**\n")
	fmt.Fprintf(&sb, "- Timestamp: %s\n", event.Timestamp)
	fmt.Fprintf(&sb, "- User sentiment: %s (confidence: %.2f)\n", event.AcousticData.Sentiment, event.AcousticData.Score)
	fmt.Fprintf(&sb, "- Visual context: User is looking at %q on the %q page\n", event.VisualContext.DetectedElement, event.VisualContext.Page)
	fmt.Fprintf(&sb, "- User quote: %q\n\n", event.UserQuote)
	sb.WriteString(recalled)
	sb.WriteString("\n\n**Your task:**\n")
	sb.WriteString("1. Consider any past learnings above — if this is a recurring issue, escalate severity and reference the pattern.\n")
	sb.WriteString("2. Diagnose the specific qualitative UI flaw causing this friction.\n")
	sb.WriteString("3. Classify the severity as \"critical\", \"moderate\", or \"minor\".\n")
	sb.WriteString("4. Assign a UX category from: \"navigation\", \"visual_hierarchy\", \"labeling\", \"affordance\", \"feedback\", \"layout\", \"accessibility\", \"information_architecture\".\n")
	sb.WriteString("5. Suggest a specific, actionable fix for a design team.\n\n")
	sb.WriteString("**Respond in this exact JSON format (no markdown, no code fences):**\n")
	sb.WriteString(`{
  "root_cause": "specific diagnosis here",
  "severity": "critical|moderate|minor",
  "category": "one of the categories above",
  "suggested_fix": "actionable suggestion here"
}`)
	return sb.String()
}

type diagnosisJSON struct {
	RootCause    string `json:"root_cause"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	SuggestedFix string `json:"suggested_fix"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}
