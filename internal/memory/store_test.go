package memory

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moglabs/lumina/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "memory.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesMissingDataDir(t *testing.T) {
	// Fresh-install layout: the data dir does not exist yet.
	dbPath := filepath.Join(t.TempDir(), "lumina-data", "memories.db")
	s, err := New(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New with missing parent dir: %v", err)
	}
	defer s.Close()

	if err := s.StoreInsight(testInsight("checkout", "Pay Button", "stuck")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func testInsight(page, element, quote string) domain.Insight {
	return domain.Insight{
		EventID: "evt-1",
		FrictionEvent: domain.FrictionEvent{
			EventID:       "evt-1",
			AcousticData:  domain.AcousticData{Sentiment: "Frustrated", Score: 0.85},
			VisualContext: domain.VisualContext{DetectedElement: element, Page: page},
			UserQuote:     quote,
		},
		RootCause:    "The button blends into the background",
		Severity:     domain.SeverityCritical,
		Category:     "visual_hierarchy",
		SuggestedFix: "Increase the button contrast",
	}
}

func TestStoreInsight_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.StoreInsight(testInsight("checkout", "Pay Button", "where is the pay button")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d memories, want 1", len(all))
	}
	m := all[0]
	if m.Kind != KindInsight {
		t.Errorf("kind = %q, want %q", m.Kind, KindInsight)
	}
	if m.Page != "checkout" || m.Category != "visual_hierarchy" || m.Severity != domain.SeverityCritical {
		t.Errorf("metadata not preserved: %+v", m)
	}
	if !strings.Contains(m.Text, "CRITICAL visual_hierarchy issue on checkout page") {
		t.Errorf("unexpected text: %q", m.Text)
	}
	if !strings.Contains(m.Text, `"where is the pay button"`) {
		t.Errorf("quote missing from text: %q", m.Text)
	}
}

func TestStoreInsight_SanitizesQuote(t *testing.T) {
	s := newTestStore(t)

	if err := s.StoreInsight(testInsight("login", "Email Field", "my email is jane@example.com and it fails")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}

	all, _ := s.ListAll()
	if strings.Contains(all[0].Text, "jane@example.com") {
		t.Errorf("raw email leaked into memory: %q", all[0].Text)
	}
	if !strings.Contains(all[0].Text, "[email]") {
		t.Errorf("redaction marker missing: %q", all[0].Text)
	}
}

func TestStoreSummary_EmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreSummary("", 0); err != nil {
		t.Fatalf("StoreSummary: %v", err)
	}
	all, _ := s.ListAll()
	if len(all) != 0 {
		t.Errorf("empty summary stored: %d memories", len(all))
	}
}

func TestRecallForEvent_RanksByOverlap(t *testing.T) {
	s := newTestStore(t)

	if err := s.StoreInsight(testInsight("checkout", "Pay Button", "cannot find the pay button")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}
	if err := s.StoreInsight(testInsight("settings", "Theme Toggle", "which toggle changes theme")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}

	event := domain.FrictionEvent{
		AcousticData:  domain.AcousticData{Sentiment: "Frustrated"},
		VisualContext: domain.VisualContext{DetectedElement: "Pay Button", Page: "checkout"},
		UserQuote:     "where did the pay button go",
	}
	context, err := s.RecallForEvent(event)
	if err != nil {
		t.Fatalf("RecallForEvent: %v", err)
	}
	if !strings.HasPrefix(context, "PAST LEARNINGS (from previous sessions):") {
		t.Errorf("missing header: %q", context)
	}
	lines := strings.Split(context, "\n")
	if len(lines) < 2 || !strings.Contains(lines[1], "checkout") {
		t.Errorf("checkout memory should rank first: %q", context)
	}
}

func TestRecallForEvent_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	context, err := s.RecallForEvent(domain.FrictionEvent{
		VisualContext: domain.VisualContext{Page: "checkout"},
		UserQuote:     "stuck here",
	})
	if err != nil {
		t.Fatalf("RecallForEvent: %v", err)
	}
	if context != "" {
		t.Errorf("expected empty context, got %q", context)
	}
}

func TestRecallForEvent_LimitsToFive(t *testing.T) {
	s := newTestStore(t)
	for range 8 {
		if err := s.StoreInsight(testInsight("checkout", "Pay Button", "cannot find the pay button")); err != nil {
			t.Fatalf("StoreInsight: %v", err)
		}
	}

	event := domain.FrictionEvent{
		AcousticData:  domain.AcousticData{Sentiment: "Frustrated"},
		VisualContext: domain.VisualContext{DetectedElement: "Pay Button", Page: "checkout"},
		UserQuote:     "cannot find the pay button",
	}
	context, err := s.RecallForEvent(event)
	if err != nil {
		t.Fatalf("RecallForEvent: %v", err)
	}
	// header + at most 5 numbered learnings
	if lines := strings.Split(context, "\n"); len(lines) != 6 {
		t.Errorf("got %d lines, want 6:\n%s", len(lines), context)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreInsight(testInsight("checkout", "Pay Button", "stuck")); err != nil {
		t.Fatalf("StoreInsight: %v", err)
	}
	all, _ := s.ListAll()

	if err := s.Delete(all[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(all[0].ID); err == nil {
		t.Error("expected error deleting missing memory")
	}
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)
	for range 3 {
		if err := s.StoreInsight(testInsight("checkout", "Pay Button", "stuck")); err != nil {
			t.Fatalf("StoreInsight: %v", err)
		}
	}
	if err := s.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	all, _ := s.ListAll()
	if len(all) != 0 {
		t.Errorf("got %d memories after DeleteAll, want 0", len(all))
	}
}
