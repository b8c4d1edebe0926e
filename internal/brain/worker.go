package brain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/moglabs/lumina/internal/domain"
	"github.com/moglabs/lumina/internal/progress"
)

// Diagnoser turns a friction event plus recalled context into an insight.
type Diagnoser interface {
	Diagnose(ctx context.Context, event domain.FrictionEvent, recalled string) (domain.Insight, error)
}

// Recaller retrieves past learnings relevant to an event.
type Recaller interface {
	RecallForEvent(event domain.FrictionEvent) (string, error)
}

// InsightStore persists an insight as a long-term learning.
type InsightStore interface {
	StoreInsight(insight domain.Insight) error
}

// BenchmarkSearcher researches industry best practices for an issue.
type BenchmarkSearcher interface {
	Search(ctx context.Context, issueDescription, category string) (domain.BenchmarkResult, error)
}

// MockupGenerator produces a corrected-UI image for a captured frame.
type MockupGenerator interface {
	Generate(ctx context.Context, framePath, problem, fix string) (string, error)
}

// Curator merges insights and their enrichments into the playbook.
type Curator interface {
	CurateInsight(insight domain.Insight, frameURL string) error
	CurateBenchmark(insight domain.Insight, bench domain.BenchmarkResult) error
	SetMockupURL(frameURL, mockupURL string) error
}

// Worker is the single consumer of the event queue.
type Worker struct {
	queue     *Queue
	diagnoser Diagnoser
	recaller  Recaller
	store     InsightStore
	bench     BenchmarkSearcher
	mockup    MockupGenerator
	curator   Curator
	bus       *progress.Bus
	uploadDir string
	log       *slog.Logger
	busy      atomic.Bool
}

// NewWorker wires a worker to its collaborators. uploadDir is the root the
// host serves at /uploads, used to turn frame paths into URLs.
func NewWorker(queue *Queue, diagnoser Diagnoser, recaller Recaller, store InsightStore,
	bench BenchmarkSearcher, mockup MockupGenerator, curator Curator,
	bus *progress.Bus, uploadDir string, log *slog.Logger) *Worker {
	return &Worker{
		queue:     queue,
		diagnoser: diagnoser,
		recaller:  recaller,
		store:     store,
		bench:     bench,
		mockup:    mockup,
		curator:   curator,
		bus:       bus,
		uploadDir: uploadDir,
		log:       log,
	}
}

// Busy reports whether an event is currently being processed. Combined
// with Queue.Len it tells a caller when the pipeline has drained.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Run consumes events until the context is cancelled. The event being
// processed at cancellation time still reaches curation; only its
// enrichments are cut short.
func (w *Worker) Run(ctx context.Context) {
	for {
		event, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Info("brain worker stopping", "queued", w.queue.Len())
			return
		}
		w.busy.Store(true)
		w.handle(ctx, event)
		w.busy.Store(false)
	}
}

// handle processes one event. A diagnosis or curation failure drops the
// event; enrichment failures are absorbed per branch.
func (w *Worker) handle(ctx context.Context, event domain.FrictionEvent) {
	w.log.Info("processing event", "event_id", event.EventID, "page", event.VisualContext.Page)
	w.bus.Publish("reflecting", "Brain analyzing event...")

	// Diagnosis and curation run to completion even during shutdown so
	// the in-flight event is not lost between dequeue and persistence.
	curateCtx := context.WithoutCancel(ctx)

	recalled := ""
	if w.recaller != nil {
		var err error
		recalled, err = w.recaller.RecallForEvent(event)
		if err != nil {
			w.log.Warn("memory recall failed", "event_id", event.EventID, "error", err)
			recalled = ""
		}
	}

	insight, err := w.diagnoser.Diagnose(curateCtx, event, recalled)
	if err != nil {
		w.log.Error("diagnosis failed, dropping event", "event_id", event.EventID, "error", err)
		return
	}

	frameURL := w.frameURL(event.FramePath)

	w.bus.Publish("curating", fmt.Sprintf("Curated: %s %s", insight.Severity, insight.Category))
	if err := w.curator.CurateInsight(insight, frameURL); err != nil {
		w.log.Error("curation failed, dropping event", "event_id", event.EventID, "error", err)
		return
	}

	var wg sync.WaitGroup

	if w.mockup != nil && event.FramePath != "" && frameURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.bus.Publish("mockup", "Generating UI mockup...")
			mockupPath, err := w.mockup.Generate(ctx, event.FramePath, insight.RootCause, insight.SuggestedFix)
			if err != nil {
				w.log.Warn("mockup generation failed", "event_id", event.EventID, "error", err)
				return
			}
			mockupURL := w.frameURL(mockupPath)
			if err := w.curator.SetMockupURL(frameURL, mockupURL); err != nil {
				w.log.Warn("mockup url update failed", "event_id", event.EventID, "error", err)
				return
			}
			w.bus.Publish("mockup_done", "Mockup generated")
		}()
	}

	if w.bench != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bench, err := w.bench.Search(ctx, insight.RootCause, insight.Category)
			if err != nil {
				w.log.Warn("benchmark research failed", "event_id", event.EventID, "error", err)
				return
			}
			if err := w.curator.CurateBenchmark(insight, bench); err != nil {
				w.log.Warn("benchmark curation failed", "event_id", event.EventID, "error", err)
			}
		}()
	}

	if w.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.store.StoreInsight(insight); err != nil {
				w.log.Warn("insight memory store failed", "event_id", event.EventID, "error", err)
				return
			}
			w.bus.Publish("learning", "Stored insight in memory")
		}()
	}

	wg.Wait()
	w.log.Info("event processed",
		"event_id", event.EventID,
		"severity", insight.Severity,
		"category", insight.Category)
}

// frameURL maps a file under uploadDir to its served /uploads URL.
// Returns "" for paths outside the upload directory or missing files.
func (w *Worker) frameURL(path string) string {
	if path == "" || w.uploadDir == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	rel, err := filepath.Rel(w.uploadDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return "/uploads/" + filepath.ToSlash(rel)
}
