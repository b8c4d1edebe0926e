// Package sentiment turns transcript-with-emotion results into friction
// scores, combining the acoustic emotion signal with a fixed table of
// friction-indicating phrases that catches distress the voice tone misses.
package sentiment

import "strings"

// FrictionThreshold is the score above which an utterance becomes a
// FrictionEvent. The boundary value itself is excluded.
const FrictionThreshold = 0.6

// emotionMap maps a raw emotion label to (sentiment label, friction score).
var emotionMap = map[string]scored{
	"Frustrated": {"Frustrated", 0.85},
	"Angry":      {"Frustrated", 0.85},
	"Confused":   {"Confused", 0.75},
	"Uncertain":  {"Confused", 0.75},
	"Hesitant":   {"Hesitant", 0.65},
	"Anxious":    {"Hesitant", 0.65},
	"Neutral":    {"Neutral", 0.2},
	"Happy":      {"Neutral", 0.2},
	"Calm":       {"Neutral", 0.2},
}

type scored struct {
	sentiment string
	score     float64
}

// MapEmotion maps a raw emotion label to our sentiment category and score.
func MapEmotion(emotion string) (string, float64) {
	if s, ok := emotionMap[emotion]; ok {
		return s.sentiment, s.score
	}
	return "Neutral", 0.3
}

type frictionPhrase struct {
	phrase    string
	sentiment string
	score     float64
}

// frictionPhrases are text signals that override a flat vocal tone.
var frictionPhrases = []frictionPhrase{
	{"can't figure", "Confused", 0.80},
	{"can't seem to", "Confused", 0.75},
	{"don't see", "Confused", 0.75},
	{"don't know how", "Confused", 0.75},
	{"confusing", "Confused", 0.80},
	{"confused", "Confused", 0.80},
	{"where is", "Confused", 0.70},
	{"where do i", "Confused", 0.70},
	{"how do i", "Confused", 0.65},
	{"not working", "Frustrated", 0.80},
	{"doesn't work", "Frustrated", 0.80},
	{"broken", "Frustrated", 0.85},
	{"frustrating", "Frustrated", 0.85},
	{"annoying", "Frustrated", 0.80},
	{"what the", "Frustrated", 0.75},
	{"makes no sense", "Frustrated", 0.80},
	{"no idea", "Confused", 0.75},
	{"impossible", "Frustrated", 0.85},
	{"stuck", "Frustrated", 0.75},
	{"give up", "Frustrated", 0.90},
}

// TextFrictionCheck scans text for friction phrases and returns the
// highest-scoring match, or ("Neutral", 0.0) when nothing matches.
func TextFrictionCheck(text string) (string, float64) {
	lower := strings.ToLower(text)
	sentiment := "Neutral"
	score := 0.0
	for _, p := range frictionPhrases {
		if strings.Contains(lower, p.phrase) && p.score > score {
			sentiment = p.sentiment
			score = p.score
		}
	}
	return sentiment, score
}

// Override applies the text-phrase override rule: the text result wins
// outright, sentiment and score both, when its score beats the acoustic one.
func Override(acousticSentiment string, acousticScore float64, text string) (string, float64, bool) {
	textSentiment, textScore := TextFrictionCheck(text)
	if textScore > acousticScore {
		return textSentiment, textScore, true
	}
	return acousticSentiment, acousticScore, false
}
