// Package memory persists cross-session learnings in sqlite and recalls
// the most relevant ones when a new friction event arrives.
package memory

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/moglabs/lumina/internal/domain"
	"github.com/moglabs/lumina/internal/sanitize"
)

//go:embed schema.sql
var schema string

// Memory kinds.
const (
	KindInsight        = "insight"
	KindSessionSummary = "session_summary"
)

// recallLimit caps how many past learnings are handed to the diagnoser.
const recallLimit = 5

// Memory is one stored learning.
type Memory struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Page      string    `json:"page,omitempty"`
	Element   string    `json:"element,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store handles memory persistence.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// New opens (or creates) the memory database at dbPath. The parent
// directory is created if missing; the sqlite driver will not.
func New(dbPath string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreInsight records a curated insight as a learning. The user quote is
// scrubbed of emails, keys and phone numbers before it is written.
func (s *Store) StoreInsight(insight domain.Insight) error {
	event := insight.FrictionEvent
	quote := sanitize.Redact(event.UserQuote)

	text := fmt.Sprintf(
		"%s %s issue on %s page — element: %s. Root cause: %s. Suggested fix: %s. User quote: %q",
		strings.ToUpper(insight.Severity),
		insight.Category,
		event.VisualContext.Page,
		event.VisualContext.DetectedElement,
		insight.RootCause,
		insight.SuggestedFix,
		quote,
	)

	err := s.insert(Memory{
		ID:        uuid.New().String(),
		Kind:      KindInsight,
		Text:      text,
		Category:  insight.Category,
		Severity:  insight.Severity,
		Page:      event.VisualContext.Page,
		Element:   event.VisualContext.DetectedElement,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.log.Info("stored insight memory",
		"severity", insight.Severity,
		"category", insight.Category,
		"page", event.VisualContext.Page)
	return nil
}

// StoreSummary records a session-level summary produced after all events
// from one upload have been processed.
func (s *Store) StoreSummary(text string, eventCount int) error {
	if text == "" {
		return nil
	}
	err := s.insert(Memory{
		ID:        uuid.New().String(),
		Kind:      KindSessionSummary,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.log.Info("stored session summary", "events", eventCount)
	return nil
}

func (s *Store) insert(m Memory) error {
	_, err := s.db.Exec(
		"INSERT INTO memories (id, kind, text, category, severity, page, element, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.Kind, m.Text, m.Category, m.Severity, m.Page, m.Element, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// RecallForEvent retrieves past learnings relevant to a new friction event,
// formatted as a context block for the diagnoser. Returns "" when nothing
// relevant is stored.
func (s *Store) RecallForEvent(event domain.FrictionEvent) (string, error) {
	query := fmt.Sprintf(
		"%s issue on %s page, element: %s. User said: %q",
		event.AcousticData.Sentiment,
		event.VisualContext.Page,
		event.VisualContext.DetectedElement,
		event.UserQuote,
	)
	queryWords := keywords(query)

	all, err := s.ListAll()
	if err != nil {
		return "", err
	}

	type scored struct {
		text    string
		overlap int
	}
	var matches []scored
	for _, m := range all {
		n := overlapCount(queryWords, keywords(m.Text))
		if n > 0 {
			matches = append(matches, scored{text: m.Text, overlap: n})
		}
	}
	if len(matches) == 0 {
		return "", nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].overlap > matches[j].overlap
	})
	if len(matches) > recallLimit {
		matches = matches[:recallLimit]
	}

	lines := []string{"PAST LEARNINGS (from previous sessions):"}
	for i, m := range matches {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, m.text))
	}

	s.log.Info("recalled memories", "count", len(matches), "page", event.VisualContext.Page)
	return strings.Join(lines, "\n"), nil
}

// ListAll returns every stored memory, newest first.
func (s *Store) ListAll() ([]Memory, error) {
	rows, err := s.db.Query(
		"SELECT id, kind, text, category, severity, page, element, created_at FROM memories ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Kind, &m.Text, &m.Category, &m.Severity, &m.Page, &m.Element, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Delete removes one memory by id.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("memory %s not found", id)
	}
	return nil
}

// DeleteAll wipes every stored memory.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec("DELETE FROM memories"); err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	return nil
}

// keywords extracts the significant lowercase tokens of a text. Short
// words carry no signal for matching and are dropped.
func keywords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,:;!?"'()—-`)
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

func overlapCount(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
