// Package benchmark queries the benchmark-research collaborator for
// industry best practices. The collaborator is create-then-poll: a
// research task is created and polled a bounded number of times; on any
// failure, timeout or missing key the result is simply "not found" so
// enrichment never stalls the worker.
package benchmark

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

// Client talks to the benchmark-research collaborator.
type Client struct {
	cfg          config.BenchmarkConfig
	client       *http.Client
	pollInterval time.Duration
	log          *slog.Logger
}

// NewClient creates a benchmark client.
func NewClient(cfg config.BenchmarkConfig, log *slog.Logger) *Client {
	interval := time.Duration(cfg.PollSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Client{
		cfg:          cfg,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: interval,
		log:          log.With("component", "benchmark"),
	}
}

// Search looks up UX best practices for a diagnosed issue. It never
// returns an error for service-side problems: an unfound result carries
// Found=false and the caller skips the benchmark bullet.
func (c *Client) Search(ctx context.Context, issueDescription, category string) (domain.BenchmarkResult, error) {
	apiKey := os.Getenv(c.cfg.APIKeyEnv)
	if apiKey == "" {
		return domain.BenchmarkResult{}, nil
	}

	query := fmt.Sprintf(
		"Research UX best practices for solving: %s. Category: %s. Reference how top-tier apps handle this with specific examples.",
		issueDescription, category,
	)

	task, err := c.createTask(ctx, apiKey, query)
	if err != nil {
		c.log.Warn("research task creation failed", "error", err)
		return domain.BenchmarkResult{}, nil
	}

	maxPolls := c.cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 15
	}

	polls := 0
	for task.Status != "completed" && task.Status != "failed" {
		polls++
		if polls > maxPolls {
			c.log.Warn("research task timed out", "task_id", task.TaskID, "polls", polls-1)
			return domain.BenchmarkResult{}, nil
		}

		select {
		case <-ctx.Done():
			return domain.BenchmarkResult{}, nil
		case <-time.After(c.pollInterval):
		}

		task, err = c.getTask(ctx, apiKey, task.TaskID)
		if err != nil {
			c.log.Warn("research task poll failed", "error", err)
			return domain.BenchmarkResult{}, nil
		}
	}

	if task.Status == "failed" {
		c.log.Warn("research task failed", "task_id", task.TaskID)
		return domain.BenchmarkResult{}, nil
	}

	source := task.Output.Source
	if source == "" {
		source = "Industry Research"
	}

	return domain.BenchmarkResult{
		Found:          task.Output.Recommendation != "",
		Source:         source,
		Recommendation: task.Output.Recommendation,
		Examples:       task.Output.Examples,
	}, nil
}

type taskOutput struct {
	Source         string   `json:"source"`
	Recommendation string   `json:"recommendation"`
	Examples       []string `json:"examples"`
}

type researchTask struct {
	TaskID string     `json:"task_id"`
	Status string     `json:"status"`
	Output taskOutput `json:"output"`
}

func (c *Client) createTask(ctx context.Context, apiKey, query string) (*researchTask, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/research/tasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	return c.do(req)
}

func (c *Client) getTask(ctx context.Context, apiKey, taskID string) (*researchTask, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/research/tasks/" + taskID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*researchTask, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var task researchTask
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &task, nil
}
