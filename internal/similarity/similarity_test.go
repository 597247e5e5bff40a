package similarity

import (
	"testing"

	"gst-reconciliation-service/internal/models"
)

func TestLevenshteinRatio(t *testing.T) {
	m := LevenshteinMetric{}

	if got := m.Ratio("acme", "acme"); got != 100 {
		t.Errorf("identical strings ratio = %f, expected 100", got)
	}
	if got := m.Ratio("", ""); got != 100 {
		t.Errorf("two empty strings ratio = %f, expected 100", got)
	}
	if got := m.Ratio("abc", ""); got != 0 {
		t.Errorf("against empty string ratio = %f, expected 0", got)
	}

	// One substitution in a four-rune string leaves 75% intact.
	if got := m.Ratio("acme", "acmf"); got != 75 {
		t.Errorf("one edit ratio = %f, expected 75", got)
	}
}

func TestGSTINScore(t *testing.T) {
	s := NewScorer(nil, false)

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical valid", "27AABCA1234A1Z5", "27AABCA1234A1Z5", 100},
		{"identical after normalization", "27aabca1234a1z5", "27AABCA1234A1Z5", 100},
		{"identical invalid", "GSTIN001", "gstin001", 100},
		{"one side empty", "27AABCA1234A1Z5", "", 0},
		{"one side invalid", "27AABCA1234A1Z5", "GSTIN001", 0},
		{"both invalid and different", "GSTIN001", "GSTIN002", 0},
	}

	for _, tt := range tests {
		if got := s.GSTINScore(tt.a, tt.b); got != tt.expected {
			t.Errorf("%s: GSTINScore(%q, %q) = %f, expected %f", tt.name, tt.a, tt.b, got, tt.expected)
		}
	}

	// Both valid and differing: similarity ratio, strictly between 0 and 100.
	got := s.GSTINScore("27AABCA1234A1Z5", "27AABCA1234A1Z9")
	if got <= 0 || got >= 100 {
		t.Errorf("similar valid GSTINs score = %f, expected between 0 and 100", got)
	}
}

func TestNameScore(t *testing.T) {
	s := NewScorer(nil, false)

	if got := s.NameScore("Acme Industries Ltd", "Acme Industries Ltd"); got != 100 {
		t.Errorf("identical names score = %f, expected 100", got)
	}
	if got := s.NameScore("Acme Industries Ltd", "acme industries ltd"); got != 100 {
		t.Errorf("case-folded names score = %f, expected 100", got)
	}
	if got := s.NameScore("", "Acme Industries Ltd"); got != 0 {
		t.Errorf("absent name score = %f, expected 0", got)
	}

	// Token reordering should still score 100 via the token sort pass.
	if got := s.NameScore("Industries Acme", "Acme Industries"); got != 100 {
		t.Errorf("reordered tokens score = %f, expected 100", got)
	}
}

func TestNameScoreCaseSensitive(t *testing.T) {
	s := NewScorer(nil, true)

	if got := s.NameScore("ACME", "ACME"); got != 100 {
		t.Errorf("identical names score = %f, expected 100", got)
	}
	if got := s.NameScore("ACME", "acme"); got == 100 {
		t.Error("case-sensitive scorer should not treat ACME and acme as identical")
	}
}

func TestScoreRecords(t *testing.T) {
	s := NewScorer(nil, false)

	a := &models.LedgerRecord{
		GSTIN:     "27AABCA1234A1Z5",
		LegalName: "Acme Industries Ltd",
		TradeName: "Acme",
	}
	b := &models.LedgerRecord{
		GSTIN:     "27AABCA1234A1Z5",
		LegalName: "Acme Industries Ltd",
		TradeName: "",
	}

	sc := s.Score(a, b)
	if sc.GSTIN != 100 {
		t.Errorf("GSTIN score = %f, expected 100", sc.GSTIN)
	}
	if sc.LegalName != 100 {
		t.Errorf("legal name score = %f, expected 100", sc.LegalName)
	}
	if sc.TradeName != 0 {
		t.Errorf("trade name score with one side absent = %f, expected 0", sc.TradeName)
	}
}
