// Package playbook maintains the durable, deduplicated knowledge base of
// UX findings. Bullets are delta-merged by category and title similarity
// so repeated friction on the same issue accumulates evidence instead of
// producing duplicates.
package playbook

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moglabs/lumina/internal/domain"
)

// titleOverlapThreshold is the keyword-overlap ratio above which two
// bullet titles in the same category are considered the same issue.
const titleOverlapThreshold = 0.6

// DefaultSessionID names the playbook created when none exists on disk.
const DefaultSessionID = "default"

// Engine serializes all reads and writes of the playbook file.
type Engine struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewEngine returns an engine persisting to path.
func NewEngine(path string, log *slog.Logger) *Engine {
	return &Engine{path: path, log: log}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Load reads the playbook from disk, or returns an empty one if no file
// exists yet.
func (e *Engine) Load() (domain.Playbook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load()
}

func (e *Engine) load() (domain.Playbook, error) {
	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return domain.Playbook{
			SessionID:   DefaultSessionID,
			Bullets:     []domain.Bullet{},
			LastUpdated: now(),
		}, nil
	}
	if err != nil {
		return domain.Playbook{}, fmt.Errorf("read playbook: %w", err)
	}
	var pb domain.Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return domain.Playbook{}, fmt.Errorf("parse playbook: %w", err)
	}
	return pb, nil
}

// save writes the playbook atomically: first to a temp file, then renamed
// over the real path so readers never see a partial write.
func (e *Engine) save(pb *domain.Playbook) error {
	pb.LastUpdated = now()
	data, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return fmt.Errorf("encode playbook: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create playbook dir: %w", err)
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write playbook temp: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("replace playbook: %w", err)
	}
	return nil
}

// keywordSet extracts lowercase keywords from text, ignoring short words.
func keywordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(text) {
		if len(w) > 3 {
			set[strings.ToLower(w)] = true
		}
	}
	return set
}

// KeywordOverlap returns the 0-1 overlap ratio between two strings'
// keyword sets, measured against the smaller set. Either set being empty
// yields 0.
func KeywordOverlap(a, b string) float64 {
	setA := keywordSet(a)
	setB := keywordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(intersection) / float64(smaller)
}

// findMatch returns the first bullet in the same category whose title
// overlaps the new title above the threshold.
func findMatch(pb *domain.Playbook, category, title string) *domain.Bullet {
	for i := range pb.Bullets {
		b := &pb.Bullets[i]
		if b.Category == category && KeywordOverlap(b.Title, title) > titleOverlapThreshold {
			return b
		}
	}
	return nil
}

// mergeInto folds the new bullet into an existing match: counts add,
// evidence appends, severity only escalates, content concatenates unless
// already present, image URLs backfill empty slots.
func mergeInto(existing *domain.Bullet, nb domain.Bullet) {
	existing.FrictionCount += nb.FrictionCount
	existing.Evidence = append(existing.Evidence, nb.Evidence...)
	if domain.SeverityRank(nb.Severity) > domain.SeverityRank(existing.Severity) {
		existing.Severity = nb.Severity
	}
	existing.UpdatedAt = now()
	if !strings.Contains(existing.Content, nb.Content) {
		existing.Content += " | " + nb.Content
	}
	if nb.FrameURL != "" && existing.FrameURL == "" {
		existing.FrameURL = nb.FrameURL
	}
	if nb.MockupURL != "" && existing.MockupURL == "" {
		existing.MockupURL = nb.MockupURL
	}
}

// AddOrMerge delta-merges a bullet into the playbook in memory. The
// caller is responsible for persisting.
func AddOrMerge(pb *domain.Playbook, nb domain.Bullet) {
	if existing := findMatch(pb, nb.Category, nb.Title); existing != nil {
		mergeInto(existing, nb)
		return
	}
	pb.Bullets = append(pb.Bullets, nb)
}

// EvidenceString renders one friction event as a human-readable evidence
// line for a bullet.
func EvidenceString(event domain.FrictionEvent) string {
	return fmt.Sprintf("[%s] %s (score: %.2f) on %s page — %q",
		event.Timestamp,
		event.AcousticData.Sentiment,
		event.AcousticData.Score,
		event.VisualContext.Page,
		event.UserQuote,
	)
}

func newBullet(bulletType, category, title, content string, insight domain.Insight, frameURL, mockupURL string) domain.Bullet {
	ts := now()
	return domain.Bullet{
		ID:            uuid.New().String(),
		BulletType:    bulletType,
		Category:      category,
		Title:         title,
		Content:       content,
		Evidence:      []string{EvidenceString(insight.FrictionEvent)},
		FrictionCount: 1,
		Severity:      insight.Severity,
		FrameURL:      frameURL,
		MockupURL:     mockupURL,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

// CurateInsight merges an insight into the playbook as a friction_log
// bullet and a hard_strategy bullet, then persists atomically.
func (e *Engine) CurateInsight(insight domain.Insight, frameURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pb, err := e.load()
	if err != nil {
		return err
	}

	frictionBullet := newBullet(
		domain.BulletFrictionLog,
		insight.Category,
		fmt.Sprintf("%s: %s", insight.Category, insight.RootCause),
		insight.RootCause,
		insight, frameURL, "",
	)
	AddOrMerge(&pb, frictionBullet)

	strategyBullet := newBullet(
		domain.BulletHardStrategy,
		insight.Category,
		fmt.Sprintf("Fix: %s", insight.SuggestedFix),
		insight.SuggestedFix,
		insight, frameURL, "",
	)
	AddOrMerge(&pb, strategyBullet)

	if err := e.save(&pb); err != nil {
		return err
	}
	e.log.Info("curated insight",
		"severity", insight.Severity,
		"category", insight.Category,
		"bullets", len(pb.Bullets))
	return nil
}

// CurateBenchmark merges a benchmark finding for an insight into the
// playbook. An unfound or empty result adds nothing.
func (e *Engine) CurateBenchmark(insight domain.Insight, bench domain.BenchmarkResult) error {
	if !bench.Found || bench.Recommendation == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pb, err := e.load()
	if err != nil {
		return err
	}

	bullet := newBullet(
		domain.BulletBenchmark,
		insight.Category,
		fmt.Sprintf("Benchmark: %s — %s", insight.Category, bench.Source),
		bench.Recommendation,
		insight, "", "",
	)
	bullet.BenchmarkSource = bench.Source
	AddOrMerge(&pb, bullet)

	if err := e.save(&pb); err != nil {
		return err
	}
	e.log.Info("curated benchmark", "category", insight.Category, "source", bench.Source)
	return nil
}

// SetMockupURL backfills the mockup URL on every bullet carrying the
// given frame URL and no mockup yet.
func (e *Engine) SetMockupURL(frameURL, mockupURL string) error {
	if frameURL == "" || mockupURL == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pb, err := e.load()
	if err != nil {
		return err
	}

	changed := false
	for i := range pb.Bullets {
		b := &pb.Bullets[i]
		if b.FrameURL == frameURL && b.MockupURL == "" {
			b.MockupURL = mockupURL
			b.UpdatedAt = now()
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.save(&pb)
}

// Clear resets the playbook to an empty one.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pb := domain.Playbook{
		SessionID: DefaultSessionID,
		Bullets:   []domain.Bullet{},
	}
	return e.save(&pb)
}
