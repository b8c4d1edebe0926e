package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/moglabs/lumina/internal/config"
	"github.com/moglabs/lumina/internal/domain"
)

// AudioChunk is one fixed-length window of an audio track.
type AudioChunk struct {
	Index int
	Start float64 // seconds into the original track
	Path  string
}

// Splitter cuts an audio file into fixed-length chunks. The media package
// provides the ffmpeg-backed implementation.
type Splitter interface {
	SplitAudio(ctx context.Context, audioPath, outDir string, seconds int) ([]AudioChunk, error)
}

// Analyzer sends audio to the emotion-analysis collaborator and converts
// its per-utterance results into friction-scored SentimentResults.
// Without an API key it degrades to a single neutral placeholder so the
// pipeline produces zero friction events instead of failing.
type Analyzer struct {
	cfg      config.SentimentConfig
	splitter Splitter
	client   *http.Client
	log      *slog.Logger
}

// NewAnalyzer creates an Analyzer. splitter may be nil when the "full"
// strategy is configured.
func NewAnalyzer(cfg config.SentimentConfig, splitter Splitter, log *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		splitter: splitter,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:      log.With("component", "sentiment"),
	}
}

// Analyze runs the configured analysis strategy over the audio track.
// Both strategies produce the same downstream shape.
func (a *Analyzer) Analyze(ctx context.Context, audioPath string) ([]domain.SentimentResult, error) {
	if a.cfg.Strategy == "chunked" {
		return a.analyzeChunked(ctx, audioPath)
	}
	return a.analyzeFull(ctx, audioPath)
}

// analyzeFull sends the whole track at once and scores each utterance,
// applying the text override against that utterance's own text.
func (a *Analyzer) analyzeFull(ctx context.Context, audioPath string) ([]domain.SentimentResult, error) {
	apiKey := os.Getenv(a.cfg.APIKeyEnv)
	if apiKey == "" {
		a.log.Warn("no API key set, returning neutral placeholder", "env", a.cfg.APIKeyEnv)
		return []domain.SentimentResult{{Sentiment: "Neutral", Score: 0.0}}, nil
	}

	resp, err := a.callAPI(ctx, audioPath, apiKey)
	if err != nil {
		return nil, err
	}

	if len(resp.Utterances) == 0 {
		a.log.Info("no utterances detected in audio")
		return fallbackFromTranscript(resp.Text), nil
	}

	a.log.Info("utterances detected", "count", len(resp.Utterances))

	results := make([]domain.SentimentResult, 0, len(resp.Utterances))
	for i, utt := range resp.Utterances {
		sentiment, score := MapEmotion(utt.Emotion)
		sentiment, score, overridden := Override(sentiment, score, utt.Text)
		if overridden {
			a.log.Info("text override applied", "utterance", i, "sentiment", sentiment, "score", score)
		}

		results = append(results, domain.SentimentResult{
			Sentiment:  sentiment,
			Score:      score,
			Quote:      utt.Text,
			Timestamp:  float64(utt.StartMs) / 1000.0,
			ChunkIndex: i,
		})
	}

	return results, nil
}

// analyzeChunked splits the track into fixed windows, analyzes each
// independently, and keeps the single highest-friction utterance per
// chunk. The text override is checked against the whole chunk's
// transcript, not the winning utterance's text.
func (a *Analyzer) analyzeChunked(ctx context.Context, audioPath string) ([]domain.SentimentResult, error) {
	apiKey := os.Getenv(a.cfg.APIKeyEnv)
	if apiKey == "" {
		a.log.Warn("no API key set, returning neutral placeholder", "env", a.cfg.APIKeyEnv)
		return []domain.SentimentResult{{Sentiment: "Neutral", Score: 0.0}}, nil
	}
	if a.splitter == nil {
		return nil, fmt.Errorf("chunked strategy requires an audio splitter")
	}

	seconds := a.cfg.ChunkSeconds
	if seconds <= 0 {
		seconds = 30
	}

	chunks, err := a.splitter.SplitAudio(ctx, audioPath, filepath.Dir(audioPath), seconds)
	if err != nil {
		return nil, fmt.Errorf("split audio: %w", err)
	}

	var results []domain.SentimentResult
	for _, chunk := range chunks {
		resp, err := a.callAPI(ctx, chunk.Path, apiKey)
		if err != nil {
			// One bad chunk must not sink the rest of the track.
			a.log.Warn("chunk analysis failed", "chunk", chunk.Index, "error", err)
			continue
		}
		if len(resp.Utterances) == 0 {
			continue
		}

		// Running maximum over emotion-mapped scores picks the
		// representative utterance for this chunk.
		bestSentiment, bestScore := "Neutral", 0.0
		bestQuote := ""
		bestStartMs := 0
		for _, utt := range resp.Utterances {
			sentiment, score := MapEmotion(utt.Emotion)
			if score > bestScore {
				bestSentiment, bestScore = sentiment, score
				bestQuote = utt.Text
				bestStartMs = utt.StartMs
			}
		}

		bestSentiment, bestScore, _ = Override(bestSentiment, bestScore, resp.Text)

		results = append(results, domain.SentimentResult{
			Sentiment:  bestSentiment,
			Score:      bestScore,
			Quote:      bestQuote,
			Timestamp:  chunk.Start + float64(bestStartMs)/1000.0,
			ChunkIndex: chunk.Index,
		})
	}

	return results, nil
}

// fallbackFromTranscript scans the full transcript alone for friction
// phrases and emits at most one pseudo-utterance at timestamp 0.
func fallbackFromTranscript(fullText string) []domain.SentimentResult {
	sentiment, score := TextFrictionCheck(fullText)
	if score == 0 {
		sentiment = "Neutral"
	}
	return []domain.SentimentResult{{
		Sentiment: sentiment,
		Score:     score,
		Quote:     fullText,
	}}
}

type velmaUtterance struct {
	Text    string `json:"text"`
	StartMs int    `json:"start_ms"`
	Emotion string `json:"emotion"`
}

type velmaResponse struct {
	Utterances []velmaUtterance `json:"utterances"`
	Text       string           `json:"text"`
	DurationMs int              `json:"duration_ms"`
}

func (a *Analyzer) callAPI(ctx context.Context, audioPath, apiKey string) (*velmaResponse, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("upload_file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	mw.WriteField("speaker_diarization", "true")
	mw.WriteField("emotion_signal", "true")
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", apiKey)

	resp, err := a.client.Do(req)
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

	var vr velmaResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &vr, nil
}
