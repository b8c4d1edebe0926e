package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeFFmpeg writes a shell script that records its arguments and creates
// the output file named by its final argument.
func fakeFFmpeg(t *testing.T) (binary, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	binary = filepath.Join(dir, "ffmpeg")
	argsFile = filepath.Join(dir, "args.txt")

	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\nfor last; do :; done\ntouch \"$last\"\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary, argsFile
}

func TestExtractAudio_Args(t *testing.T) {
	binary, argsFile := fakeFFmpeg(t)
	e := &Extractor{Binary: binary}
	outDir := t.TempDir()

	path, err := e.ExtractAudio(context.Background(), "/videos/session.mp4", outDir)
	if err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if path != filepath.Join(outDir, "audio.wav") {
		t.Errorf("path = %q", path)
	}

	args, _ := os.ReadFile(argsFile)
	got := string(args)
	for _, want := range []string{"-vn", "pcm_s16le", "-ar 16000", "-ac 1", "session.mp4"} {
		if !strings.Contains(got, want) {
			t.Errorf("args missing %q: %s", want, got)
		}
	}
}

func TestExtractFrame_Args(t *testing.T) {
	binary, argsFile := fakeFFmpeg(t)
	e := &Extractor{Binary: binary}
	outDir := t.TempDir()

	path, err := e.ExtractFrame(context.Background(), "/videos/session.mp4", 14.5, outDir)
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if filepath.Base(path) != "frame_14.5.jpg" {
		t.Errorf("frame name = %q, want frame_14.5.jpg", filepath.Base(path))
	}

	args, _ := os.ReadFile(argsFile)
	got := string(args)
	for _, want := range []string{"-ss 14.5", "-frames:v 1", "-q:v 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("args missing %q: %s", want, got)
		}
	}
}

func TestRun_FailureCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho 'No such file or directory' >&2\nexit 1\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	e := &Extractor{Binary: binary}
	_, err := e.ExtractAudio(context.Background(), "missing.mp4", dir)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "No such file or directory") {
		t.Errorf("error missing ffmpeg stderr: %v", err)
	}
}

func TestSplitAudio_ChunkOffsets(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	// Segment mode: fabricate three chunk files instead of one output.
	script := "#!/bin/sh\nfor last; do :; done\ndir=$(dirname \"$last\")\ntouch \"$dir/chunk_000.wav\" \"$dir/chunk_001.wav\" \"$dir/chunk_002.wav\"\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	e := &Extractor{Binary: binary}
	outDir := t.TempDir()
	chunks, err := e.SplitAudio(context.Background(), "audio.wav", outDir, 30)
	if err != nil {
		t.Fatalf("SplitAudio: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d index = %d", i, c.Index)
		}
		if want := float64(i * 30); c.Start != want {
			t.Errorf("chunk %d start = %v, want %v", i, c.Start, want)
		}
	}
}
