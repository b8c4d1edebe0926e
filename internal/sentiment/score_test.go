package sentiment

import "testing"

func TestMapEmotion(t *testing.T) {
	tests := []struct {
		emotion   string
		sentiment string
		score     float64
	}{
		{"Frustrated", "Frustrated", 0.85},
		{"Angry", "Frustrated", 0.85},
		{"Confused", "Confused", 0.75},
		{"Uncertain", "Confused", 0.75},
		{"Hesitant", "Hesitant", 0.65},
		{"Anxious", "Hesitant", 0.65},
		{"Neutral", "Neutral", 0.2},
		{"Happy", "Neutral", 0.2},
		{"Calm", "Neutral", 0.2},
		{"Ecstatic", "Neutral", 0.3}, // unknown label
	}

	for _, tt := range tests {
		sentiment, score := MapEmotion(tt.emotion)
		if sentiment != tt.sentiment || score != tt.score {
			t.Errorf("MapEmotion(%q) = (%q, %v), want (%q, %v)",
				tt.emotion, sentiment, score, tt.sentiment, tt.score)
		}
	}
}

func TestTextFrictionCheck_NoMatch(t *testing.T) {
	sentiment, score := TextFrictionCheck("everything looks great, love this app")
	if sentiment != "Neutral" || score != 0.0 {
		t.Errorf("got (%q, %v), want (Neutral, 0)", sentiment, score)
	}
}

func TestTextFrictionCheck_SingleMatch(t *testing.T) {
	sentiment, score := TextFrictionCheck("this page is BROKEN")
	if sentiment != "Frustrated" || score != 0.85 {
		t.Errorf("got (%q, %v), want (Frustrated, 0.85)", sentiment, score)
	}
}

func TestTextFrictionCheck_BestScoreWins(t *testing.T) {
	// "how do i" (0.65) and "give up" (0.90) both match; highest wins.
	sentiment, score := TextFrictionCheck("how do I do this... I give up")
	if sentiment != "Frustrated" || score != 0.90 {
		t.Errorf("got (%q, %v), want (Frustrated, 0.90)", sentiment, score)
	}
}

func TestOverride_TextWinsOutright(t *testing.T) {
	// Acoustic 0.5 vs "broken" at 0.85: the text result replaces both
	// the score and the sentiment label.
	sentiment, score, overridden := Override("Hesitant", 0.5, "the button is broken")
	if !overridden {
		t.Fatal("expected override")
	}
	if sentiment != "Frustrated" || score != 0.85 {
		t.Errorf("got (%q, %v), want (Frustrated, 0.85)", sentiment, score)
	}
}

func TestOverride_AcousticWinsOnTie(t *testing.T) {
	// Text must strictly exceed the acoustic score to win.
	sentiment, score, overridden := Override("Confused", 0.85, "the button is broken")
	if overridden {
		t.Error("tie must not override")
	}
	if sentiment != "Confused" || score != 0.85 {
		t.Errorf("got (%q, %v), want (Confused, 0.85)", sentiment, score)
	}
}

func TestOverride_NoFrictionText(t *testing.T) {
	sentiment, score, overridden := Override("Hesitant", 0.65, "this is fine")
	if overridden || sentiment != "Hesitant" || score != 0.65 {
		t.Errorf("got (%q, %v, %v), want (Hesitant, 0.65, false)", sentiment, score, overridden)
	}
}

func TestFrictionThreshold_Value(t *testing.T) {
	if FrictionThreshold != 0.6 {
		t.Errorf("FrictionThreshold = %v, want 0.6", FrictionThreshold)
	}
}
