// Package sensing turns an uploaded session video into friction events:
// extract audio, score per-utterance sentiment, capture frames at friction
// spikes, attach visual context, and hand the events to the brain queue.
package sensing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/moglabs/lumina/internal/domain"
	"github.com/moglabs/lumina/internal/progress"
	"github.com/moglabs/lumina/internal/sentiment"
	"github.com/moglabs/lumina/internal/stats"
)

// MediaExtractor pulls audio tracks and still frames out of a video.
type MediaExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outDir string) (string, error)
	ExtractFrame(ctx context.Context, videoPath string, timestamp float64, outDir string) (string, error)
}

// SentimentAnalyzer scores an audio file into per-utterance results.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, audioPath string) ([]domain.SentimentResult, error)
}

// VisionAnalyzer describes what is on screen in a captured frame.
type VisionAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, imagePath, contextText string) (domain.VisualAnalysis, error)
}

// EventSink receives finished friction events.
type EventSink interface {
	Enqueue(event domain.FrictionEvent)
}

// SummaryStore persists the session-level summary.
type SummaryStore interface {
	StoreSummary(text string, eventCount int) error
}

// Archiver compresses a processed artifact for cold storage.
type Archiver interface {
	Archive(path string) (string, error)
}

// Pipeline is the sensing side of the system. Safe for concurrent use;
// each Process call works in its own directory.
type Pipeline struct {
	media     MediaExtractor
	sentiment SentimentAnalyzer
	vision    VisionAnalyzer
	sink      EventSink
	summaries SummaryStore
	archiver  Archiver
	bus       *progress.Bus
	log       *slog.Logger
}

// NewPipeline wires the sensing pipeline. summaries and archiver may be
// nil; both are best-effort steps.
func NewPipeline(media MediaExtractor, sentimentAnalyzer SentimentAnalyzer, vision VisionAnalyzer,
	sink EventSink, summaries SummaryStore, archiver Archiver,
	bus *progress.Bus, log *slog.Logger) *Pipeline {
	return &Pipeline{
		media:     media,
		sentiment: sentimentAnalyzer,
		vision:    vision,
		sink:      sink,
		summaries: summaries,
		archiver:  archiver,
		bus:       bus,
		log:       log,
	}
}

// Process runs the full sensing pipeline over one video. Only failures
// that prevent any event from being produced are returned; a single bad
// utterance is logged and skipped.
func (p *Pipeline) Process(ctx context.Context, videoPath string) error {
	workDir := videoPath + "_work"
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	filename := filepath.Base(videoPath)
	if info, err := os.Stat(videoPath); err == nil {
		sizeMB := float64(info.Size()) / (1024 * 1024)
		p.bus.Publish("upload", fmt.Sprintf("Video received: %s (%.1fMB)", filename, sizeMB))
	} else {
		p.bus.Publish("upload", fmt.Sprintf("Video received: %s", filename))
	}
	p.log.Info("sensing pipeline started", "video", videoPath)

	p.bus.Publish("audio_extract", "Extracting audio track...")
	audioPath, err := p.media.ExtractAudio(ctx, videoPath, workDir)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	p.bus.Publish("audio_extract", "Audio track extracted")

	p.bus.Publish("analyzing_audio", "Analyzing full audio for sentiment...")
	results, err := p.sentiment.Analyze(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("analyze audio: %w", err)
	}
	p.bus.Publish("voice_analysis", fmt.Sprintf("Found %d utterances", len(results)))
	p.log.Info("audio analyzed", "utterances", len(results))

	frictionCount := 0
	var sessionEvents []domain.FrictionEvent

	for _, result := range results {
		if result.Score <= sentiment.FrictionThreshold {
			continue
		}
		frictionCount++
		p.bus.PublishDetail("friction_spike",
			fmt.Sprintf("FRICTION at %.1fs — %s (%.2f)", result.Timestamp, result.Sentiment, result.Score),
			result.Quote)

		event, err := p.senseOne(ctx, videoPath, workDir, result)
		if err != nil {
			p.log.Warn("friction utterance dropped",
				"timestamp", result.Timestamp, "error", err)
			continue
		}

		sessionEvents = append(sessionEvents, event)
		p.sink.Enqueue(event)
		p.bus.Publish("event_queued", "FrictionEvent queued")
		p.log.Info("friction event queued", "event_id", event.EventID, "page", event.VisualContext.Page)
	}

	if p.summaries != nil && len(sessionEvents) > 0 {
		summary := stats.Summarize(sessionEvents)
		if err := p.summaries.StoreSummary(summary.Message(), summary.Total); err != nil {
			p.log.Warn("session summary store failed", "error", err)
		}
	}

	if p.archiver != nil {
		if archived, err := p.archiver.Archive(audioPath); err != nil {
			p.log.Warn("audio archive failed", "error", err)
		} else {
			p.log.Info("audio archived", "path", archived)
		}
	}

	p.bus.Publish("session_done",
		fmt.Sprintf("Pipeline complete: %d friction events from %d utterances", frictionCount, len(results)))
	p.log.Info("sensing pipeline complete", "friction_events", frictionCount, "utterances", len(results))
	return nil
}

// senseOne builds one friction event: frame capture plus visual context.
func (p *Pipeline) senseOne(ctx context.Context, videoPath, workDir string, result domain.SentimentResult) (domain.FrictionEvent, error) {
	framePath, err := p.media.ExtractFrame(ctx, videoPath, result.Timestamp, workDir)
	if err != nil {
		return domain.FrictionEvent{}, fmt.Errorf("extract frame: %w", err)
	}

	contextText := fmt.Sprintf("User said: %q (sentiment: %s, score: %.2f)",
		result.Quote, result.Sentiment, result.Score)
	visual, err := p.vision.AnalyzeScreenshot(ctx, framePath, contextText)
	if err != nil {
		return domain.FrictionEvent{}, fmt.Errorf("visual analysis: %w", err)
	}
	p.bus.Publish("visual_analysis",
		fmt.Sprintf("Visual: %s on %s", visual.DetectedElement, visual.Page))

	return domain.FrictionEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		AcousticData: domain.AcousticData{
			Sentiment: result.Sentiment,
			Score:     result.Score,
		},
		VisualContext: domain.VisualContext{
			DetectedElement: visual.DetectedElement,
			Page:            visual.Page,
		},
		UserQuote: result.Quote,
		Status:    domain.StatusPendingReflection,
		FramePath: framePath,
	}, nil
}
