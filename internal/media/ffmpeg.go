// Package media shells out to ffmpeg for audio/frame extraction. Failures
// carry ffmpeg's own diagnostic text so upstream logs show the real cause.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/moglabs/lumina/internal/sentiment"
)

// Extractor runs ffmpeg commands.
type Extractor struct {
	// Binary overrides the ffmpeg binary name, for tests.
	Binary string
}

// NewExtractor returns an Extractor using the ffmpeg on PATH.
func NewExtractor() *Extractor {
	return &Extractor{Binary: "ffmpeg"}
}

func (e *Extractor) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// ExtractAudio extracts the audio track as mono 16kHz WAV into outDir.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, outDir string) (string, error) {
	audioPath := filepath.Join(outDir, "audio.wav")
	err := e.run(ctx,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	)
	if err != nil {
		return "", err
	}
	return audioPath, nil
}

// ExtractFrame extracts a single frame at the given timestamp into outDir.
func (e *Extractor) ExtractFrame(ctx context.Context, videoPath string, timestamp float64, outDir string) (string, error) {
	framePath := filepath.Join(outDir, fmt.Sprintf("frame_%.1f.jpg", timestamp))
	err := e.run(ctx,
		"-ss", strconv.FormatFloat(timestamp, 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		framePath,
	)
	if err != nil {
		return "", err
	}
	return framePath, nil
}

// SplitAudio cuts an audio file into fixed-length WAV chunks. Implements
// sentiment.Splitter for the chunked analysis strategy.
func (e *Extractor) SplitAudio(ctx context.Context, audioPath, outDir string, seconds int) ([]sentiment.AudioChunk, error) {
	pattern := filepath.Join(outDir, "chunk_%03d.wav")
	err := e.run(ctx,
		"-i", audioPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-c", "copy",
		"-y",
		pattern,
	)
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "chunk_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("glob chunks: %w", err)
	}
	sort.Strings(paths)

	chunks := make([]sentiment.AudioChunk, 0, len(paths))
	for i, p := range paths {
		chunks = append(chunks, sentiment.AudioChunk{
			Index: i,
			Start: float64(i * seconds),
			Path:  p,
		})
	}
	return chunks, nil
}
