package domain

// Severity levels for diagnosed issues, highest first.
const (
	SeverityCritical = "critical"
	SeverityModerate = "moderate"
	SeverityMinor    = "minor"
)

// SeverityRank maps a severity label to its escalation rank.
// Unknown labels rank 0 and never win a merge.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// Categories is the closed set of UX categories a diagnosis may use.
var Categories = map[string]bool{
	"navigation":               true,
	"visual_hierarchy":         true,
	"labeling":                 true,
	"affordance":               true,
	"feedback":                 true,
	"layout":                   true,
	"accessibility":            true,
	"information_architecture": true,
}

// Bullet types.
const (
	BulletFrictionLog  = "friction_log"
	BulletHardStrategy = "hard_strategy"
	BulletBenchmark    = "benchmark"
)

// StatusPendingReflection is the initial status of a new FrictionEvent.
const StatusPendingReflection = "pending_reflection"

// AcousticData is the voice-derived friction signal for one event.
type AcousticData struct {
	Sentiment string  `json:"sentiment"` // "Frustrated", "Confused", "Hesitant", "Neutral"
	Score     float64 `json:"score"`     // 0.0 - 1.0
}

// VisualContext describes what was on screen at the friction moment.
type VisualContext struct {
	DetectedElement string `json:"detected_element"` // e.g. "Primary Action Button"
	Page            string `json:"page"`             // e.g. "Checkout"
}

// FrictionEvent is an observed moment of user difficulty. Immutable once
// created except for status transitions performed by the brain worker.
type FrictionEvent struct {
	EventID       string        `json:"event_id"`
	Timestamp     string        `json:"timestamp"` // ISO timestamp
	AcousticData  AcousticData  `json:"acoustic_data"`
	VisualContext VisualContext `json:"visual_context"`
	UserQuote     string        `json:"user_quote"`
	Status        string        `json:"status"`
	FramePath     string        `json:"frame_path,omitempty"` // extracted frame at the friction spike
}

// Insight is the diagnosis derived from one FrictionEvent.
type Insight struct {
	EventID       string        `json:"event_id"`
	FrictionEvent FrictionEvent `json:"friction_event"`
	RootCause     string        `json:"root_cause"`
	Severity      string        `json:"severity"`
	Category      string        `json:"category"`
	SuggestedFix  string        `json:"suggested_fix"`
}

// Bullet is a durable, deduplicated knowledge-base entry.
type Bullet struct {
	ID              string   `json:"id"`
	BulletType      string   `json:"bullet_type"`
	Category        string   `json:"category"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Evidence        []string `json:"evidence"` // timestamps + user quotes
	FrictionCount   int      `json:"friction_count"`
	Severity        string   `json:"severity"`
	BenchmarkSource string   `json:"benchmark_source"` // empty unless type=benchmark
	FrameURL        string   `json:"frame_url,omitempty"`
	MockupURL       string   `json:"mockup_url,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// Playbook is the aggregate of all bullets for a session.
type Playbook struct {
	SessionID   string   `json:"session_id"`
	Bullets     []Bullet `json:"bullets"`
	LastUpdated string   `json:"last_updated"`
}

// SentimentResult is one utterance-level sentiment finding from audio
// analysis. The downstream shape is identical for the full-track and
// chunked strategies.
type SentimentResult struct {
	Sentiment  string  // "Frustrated", "Confused", "Hesitant", "Neutral"
	Score      float64 // 0.0 - 1.0
	Quote      string  // verbatim user text
	Timestamp  float64 // seconds into the original video
	ChunkIndex int
}

// VisualAnalysis is the visual-diagnosis collaborator's result for one frame.
type VisualAnalysis struct {
	DetectedElement string
	Page            string
	Description     string
}

// BenchmarkResult is the benchmark-research collaborator's result.
// Found is false when no benchmark was returned (no key, timeout, failure);
// callers must not create benchmark bullets from an unfound result.
type BenchmarkResult struct {
	Found          bool
	Source         string
	Recommendation string
	Examples       []string
}
