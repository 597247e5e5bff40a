// Package similarity computes identifier and name similarity scores for
// supplier identity resolution.
//
// Scores are expressed on a 0-100 scale. The edit-distance algorithm is
// pluggable behind the Metric interface so the classification logic
// stays independent of the exact string-similarity implementation; the
// default metric is a normalized Levenshtein ratio with a token-sorted
// variant for word-order-insensitive name comparison.
package similarity

import (
	"sort"
	"strings"

	"gst-reconciliation-service/internal/models"

	"github.com/agnivade/levenshtein"
)

// Metric computes a similarity ratio between two strings on a 0-100
// scale. Implementations must be pure functions safe for concurrent use.
type Metric interface {
	Ratio(a, b string) float64
}

// LevenshteinMetric scores strings by normalized edit distance.
type LevenshteinMetric struct{}

// Ratio returns 100 for identical strings and degrades linearly with
// the edit distance relative to the longer input.
func (LevenshteinMetric) Ratio(a, b string) float64 {
	if a == b {
		return 100
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}

	dist := levenshtein.ComputeDistance(a, b)
	ratio := (1 - float64(dist)/float64(maxLen)) * 100
	if ratio < 0 {
		return 0
	}
	return ratio
}

// Scores holds the three identity similarity scores for a record pair.
type Scores struct {
	GSTIN     float64
	LegalName float64
	TradeName float64
}

// Scorer computes identity scores between ledger records. It carries no
// per-comparison state and is safe to share across goroutines.
type Scorer struct {
	metric        Metric
	caseSensitive bool
}

// NewScorer creates a scorer backed by the given metric. A nil metric
// falls back to the Levenshtein default.
func NewScorer(metric Metric, caseSensitiveNames bool) *Scorer {
	if metric == nil {
		metric = LevenshteinMetric{}
	}
	return &Scorer{metric: metric, caseSensitive: caseSensitiveNames}
}

// Score computes all three identity scores for a record pair.
func (s *Scorer) Score(a, b *models.LedgerRecord) Scores {
	return Scores{
		GSTIN:     s.GSTINScore(a.GSTIN, b.GSTIN),
		LegalName: s.NameScore(a.LegalName, b.LegalName),
		TradeName: s.NameScore(a.TradeName, b.TradeName),
	}
}

// GSTINScore scores two supplier identifiers. Byte-identical normalized
// identifiers always score 100; otherwise a malformed identifier on
// either side forces zero, and two well-formed identifiers score by the
// configured metric.
func (s *Scorer) GSTINScore(a, b string) float64 {
	na := models.NormalizeGSTIN(a)
	nb := models.NormalizeGSTIN(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	if !models.IsValidGSTIN(na) || !models.IsValidGSTIN(nb) {
		return 0
	}

	return s.metric.Ratio(na, nb)
}

// NameScore scores two name fields. An absent name on either side
// yields zero; absence is never treated as a match. The score is the
// better of the plain ratio and the token-sorted ratio so reordered
// words ("Traders ABC" vs "ABC Traders") still score high.
func (s *Scorer) NameScore(a, b string) float64 {
	na := models.NormalizeName(a)
	nb := models.NormalizeName(b)

	if na == "" || nb == "" {
		return 0
	}

	if !s.caseSensitive {
		na = strings.ToLower(na)
		nb = strings.ToLower(nb)
	}

	plain := s.metric.Ratio(na, nb)
	sorted := s.metric.Ratio(tokenSort(na), tokenSort(nb))
	if sorted > plain {
		return sorted
	}
	return plain
}

// tokenSort rebuilds the string from its whitespace tokens in sorted
// order.
func tokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
