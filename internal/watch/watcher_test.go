package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_PicksUpDroppedVideo(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, 30*time.Millisecond, rec.handle, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	video := filepath.Join(dir, "session.mp4")
	if err := os.WriteFile(video, []byte("mp4 payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatalf("handler calls = %d, want 1", len(rec.snapshot()))
	}
	if rec.snapshot()[0] != video {
		t.Errorf("handled %q, want %q", rec.snapshot()[0], video)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestWatcher_IgnoresNonVideoFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, 30*time.Millisecond, rec.handle, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a video"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("handler calls = %d for non-video file", n)
	}
}

func TestWatcher_PicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "already-here.mov")
	if err := os.WriteFile(video, []byte("mov payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher(dir, 30*time.Millisecond, rec.handle, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatalf("existing file never handled")
	}
}

func TestWatcher_WaitsForFileToSettle(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, 40*time.Millisecond, rec.handle, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	video := filepath.Join(dir, "growing.mp4")
	f, err := os.Create(video)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a slow copy: keep growing the file.
	for range 4 {
		f.Write([]byte("chunk of video data "))
		f.Sync()
		time.Sleep(30 * time.Millisecond)
		if n := len(rec.snapshot()); n != 0 {
			t.Fatalf("file handled while still growing")
		}
	}
	f.Close()

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatalf("settled file never handled, calls = %d", len(rec.snapshot()))
	}
}

func TestMoveTo(t *testing.T) {
	inbox := t.TempDir()
	uploads := filepath.Join(t.TempDir(), "uploads") // not yet created
	src := filepath.Join(inbox, "session.mp4")
	if err := os.WriteFile(src, []byte("mp4 payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest, err := MoveTo(src, uploads)
	if err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if want := filepath.Join(uploads, "session.mp4"); dest != want {
		t.Errorf("dest = %q, want %q", dest, want)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read moved file: %v", err)
	}
	if string(data) != "mp4 payload" {
		t.Errorf("moved content = %q", data)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file still present after move")
	}
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a/session.mp4", true},
		{"a/SESSION.MOV", true},
		{"a/clip.webm", true},
		{"a/notes.txt", false},
		{"a/audio.wav", false},
	}
	for _, tt := range tests {
		if got := isVideo(tt.path); got != tt.want {
			t.Errorf("isVideo(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
