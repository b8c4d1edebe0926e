// Package stats aggregates a session's friction events into the summary
// stored as a cross-session learning.
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moglabs/lumina/internal/domain"
)

// Summary describes the friction patterns of one processed session.
type Summary struct {
	Total             int
	PageCounts        map[string]int
	TopPage           string
	DominantSentiment string
}

// Summarize aggregates the events of one upload. Returns a zero Summary
// for an empty slice.
func Summarize(events []domain.FrictionEvent) Summary {
	if len(events) == 0 {
		return Summary{}
	}

	pageCounts := map[string]int{}
	sentimentCounts := map[string]int{}
	for _, e := range events {
		pageCounts[e.VisualContext.Page]++
		sentimentCounts[e.AcousticData.Sentiment]++
	}

	return Summary{
		Total:             len(events),
		PageCounts:        pageCounts,
		TopPage:           topKey(pageCounts),
		DominantSentiment: topKey(sentimentCounts),
	}
}

// Message renders the summary as a single learning text.
func (s Summary) Message() string {
	if s.Total == 0 {
		return ""
	}

	parts := []string{
		fmt.Sprintf("Session processed %d friction events.", s.Total),
		fmt.Sprintf("Most problematic page: %s (%d/%d events).", s.TopPage, s.PageCounts[s.TopPage], s.Total),
	}
	for _, page := range sortedByCount(s.PageCounts) {
		parts = append(parts, fmt.Sprintf("- %s: %d friction events", page, s.PageCounts[page]))
	}
	parts = append(parts, fmt.Sprintf("Dominant user sentiment: %s.", s.DominantSentiment))

	return strings.Join(parts, " ")
}

// topKey returns the key with the highest count, ties broken
// alphabetically so the result is deterministic.
func topKey(counts map[string]int) string {
	keys := sortedByCount(counts)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
