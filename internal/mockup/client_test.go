package mockup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/moglabs/lumina/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGenerate_NotConfigured(t *testing.T) {
	t.Setenv("TEST_MOCKUP_KEY", "")
	c := NewClient(config.MockupConfig{APIKeyEnv: "TEST_MOCKUP_KEY"}, testLogger())

	_, err := c.Generate(context.Background(), "frame.jpg", "p", "f")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGenerate_WritesMockup(t *testing.T) {
	rendered := []byte("fake png bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Image == "" || req.Prompt == "" {
			t.Error("request missing image or prompt")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(rendered)}},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	framePath := filepath.Join(dir, "frame_14.5.jpg")
	if err := os.WriteFile(framePath, []byte("fake jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_MOCKUP_KEY", "key")
	c := NewClient(config.MockupConfig{
		BaseURL:        srv.URL,
		Model:          "test-model",
		APIKeyEnv:      "TEST_MOCKUP_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	path, err := c.Generate(context.Background(), framePath, "button hidden", "make it sticky")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Base(path) != "frame_14.5_mockup.png" {
		t.Errorf("mockup path = %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read mockup: %v", err)
	}
	if string(got) != string(rendered) {
		t.Error("mockup bytes mismatch")
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	dir := t.TempDir()
	framePath := filepath.Join(dir, "frame.jpg")
	os.WriteFile(framePath, []byte("x"), 0o644)

	t.Setenv("TEST_MOCKUP_KEY", "key")
	c := NewClient(config.MockupConfig{
		BaseURL:        srv.URL,
		APIKeyEnv:      "TEST_MOCKUP_KEY",
		TimeoutSeconds: 5,
	}, testLogger())

	if _, err := c.Generate(context.Background(), framePath, "p", "f"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestMockupPathFor(t *testing.T) {
	if got := mockupPathFor("/tmp/frame_3.0.jpg"); got != "/tmp/frame_3.0_mockup.png" {
		t.Errorf("got %q", got)
	}
	if got := mockupPathFor("/tmp/frame.png"); got != "/tmp/frame_mockup.png" {
		t.Errorf("got %q", got)
	}
}
