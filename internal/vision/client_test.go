package vision

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moglabs/lumina/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFrame(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame_14.5.jpg")
	if err := os.WriteFile(path, []byte("fake jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnalyzeScreenshot_NoAPIKey(t *testing.T) {
	t.Setenv("TEST_VISION_KEY", "")
	c := NewClient(config.VisionConfig{APIKeyEnv: "TEST_VISION_KEY"}, testLogger())

	va, err := c.AnalyzeScreenshot(context.Background(), writeFrame(t), "ctx")
	if err != nil {
		t.Fatalf("AnalyzeScreenshot: %v", err)
	}
	if va.DetectedElement != "Unknown Element" || va.Page != "Unknown Page" {
		t.Errorf("got %+v, want Unknown placeholder", va)
	}
}

func TestAnalyzeScreenshot_ParsesJSON(t *testing.T) {
	srv := chatServer(t, `{"detected_element": "Checkout Button", "page": "Cart", "description": "button hidden below fold"}`)
	defer srv.Close()

	t.Setenv("TEST_VISION_KEY", "key")
	c := NewClient(config.VisionConfig{
		BaseURL:        srv.URL,
		Model:          "reka-flash",
		APIKeyEnv:      "TEST_VISION_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	va, err := c.AnalyzeScreenshot(context.Background(), writeFrame(t), `User said: "can't find it"`)
	if err != nil {
		t.Fatalf("AnalyzeScreenshot: %v", err)
	}
	if va.DetectedElement != "Checkout Button" || va.Page != "Cart" {
		t.Errorf("got %+v", va)
	}
}

func TestAnalyzeScreenshot_StripsFences(t *testing.T) {
	srv := chatServer(t, "```json\n{\"detected_element\": \"Nav Menu\", \"page\": \"Home\", \"description\": \"d\"}\n```")
	defer srv.Close()

	t.Setenv("TEST_VISION_KEY", "key")
	c := NewClient(config.VisionConfig{
		BaseURL:        srv.URL,
		APIKeyEnv:      "TEST_VISION_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	va, err := c.AnalyzeScreenshot(context.Background(), writeFrame(t), "")
	if err != nil {
		t.Fatalf("AnalyzeScreenshot: %v", err)
	}
	if va.DetectedElement != "Nav Menu" || va.Page != "Home" {
		t.Errorf("got %+v", va)
	}
}

func TestAnalyzeScreenshot_MalformedBecomesPlaceholder(t *testing.T) {
	srv := chatServer(t, "The user seems to struggle with the menu, not JSON at all")
	defer srv.Close()

	t.Setenv("TEST_VISION_KEY", "key")
	c := NewClient(config.VisionConfig{
		BaseURL:        srv.URL,
		APIKeyEnv:      "TEST_VISION_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	va, err := c.AnalyzeScreenshot(context.Background(), writeFrame(t), "")
	if err != nil {
		t.Fatalf("AnalyzeScreenshot: %v", err)
	}
	if va.DetectedElement != "Unknown Element" || va.Page != "Unknown Page" {
		t.Errorf("got %+v, want Unknown placeholder", va)
	}
	if !strings.Contains(va.Description, "struggle with the menu") {
		t.Errorf("description should carry the raw reply, got %q", va.Description)
	}
}

func TestAnalyzeScreenshot_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	t.Setenv("TEST_VISION_KEY", "key")
	c := NewClient(config.VisionConfig{
		BaseURL:        srv.URL,
		APIKeyEnv:      "TEST_VISION_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	if _, err := c.AnalyzeScreenshot(context.Background(), writeFrame(t), ""); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
