// Package settings derives the user-facing status columns from match
// annotations under the configured tolerances. The matcher decides who
// pairs with whom; this package decides how those pairings read in the
// final report.
package settings

import (
	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
)

// Derived status values rendered into reports.
const (
	TaxDiffNone    = "No Difference"
	TaxDiffPresent = "Has Difference"

	DateWithinTolerance  = "Within Tolerance"
	DateOutsideTolerance = "Outside Tolerance"

	NotApplicable = "N/A"
)

// Settings applies tolerance-driven presentation rules to annotations.
type Settings struct {
	Tolerances *matcher.ToleranceConfig
}

// New wraps a tolerance configuration. A nil config falls back to
// defaults.
func New(cfg *matcher.ToleranceConfig) *Settings {
	if cfg == nil {
		cfg = matcher.DefaultToleranceConfig()
	}
	return &Settings{Tolerances: cfg}
}

// Validate checks the underlying tolerance configuration.
func (s *Settings) Validate() error {
	return s.Tolerances.Validate()
}

// TaxDiffStatus classifies the total tax difference of an annotation.
// Records without a counterpart have no difference to speak of and
// report N/A. The tolerance boundary itself counts as no difference.
func (s *Settings) TaxDiffStatus(ann *models.MatchAnnotation) string {
	if ann == nil || !ann.HasCounterpart {
		return NotApplicable
	}
	if s.Tolerances.WithinTaxTolerance(ann.TotalTaxDiff()) {
		return TaxDiffNone
	}
	return TaxDiffPresent
}

// DateStatus classifies the invoice date difference of an annotation.
// Grouped matches carry no meaningful single date difference and
// report N/A, as do one-sided records.
func (s *Settings) DateStatus(ann *models.MatchAnnotation) string {
	if ann == nil || !ann.HasCounterpart || ann.Status.IsGrouped() {
		return NotApplicable
	}
	if s.Tolerances.WithinDateTolerance(ann.DateDiff) {
		return DateWithinTolerance
	}
	return DateOutsideTolerance
}

// PreferredName returns the configured name field of a record, falling
// back to the other name when the preferred one is absent.
func (s *Settings) PreferredName(rec *models.LedgerRecord) string {
	preferred, fallback := rec.LegalName, rec.TradeName
	if s.Tolerances.NamePreference == matcher.PreferTradeName {
		preferred, fallback = rec.TradeName, rec.LegalName
	}
	if preferred == "" {
		return fallback
	}
	return preferred
}
