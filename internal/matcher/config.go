// Package matcher implements the multi-pass invoice classification
// pipeline and its configuration.
//
// The pipeline assigns every ledger record one of seven match statuses
// over a fixed sequence of passes:
//  1. Exact Match: identical identifier and invoice number, amounts
//     equal within a near-zero epsilon, zero date difference
//  2. Partial Match: accepted supplier identity with amounts and dates
//     within configured tolerances
//  3. Group Match: one invoice against several under the same
//     (GSTIN, invoice number) key
//  4. Tax-Based Group Match: per-supplier aggregate tax agreement when
//     invoice numbers disagree
//  5. Data Entry Swap Match: transposed amount columns
//  6. Books Only / GSTR-2A Only for everything left over
//
// Records carrying a one-to-one status are frozen and never revisited.
// Any non-exact pairing must additionally satisfy the identity
// acceptance rule: sufficient GSTIN similarity or sufficient similarity
// on at least one name field. Amount agreement alone never establishes
// shared identity.
//
// Example usage:
//
//	cfg := matcher.DefaultToleranceConfig()
//	cfg.DateToleranceDays = 2
//
//	engine := matcher.NewEngine(records, cfg)
//	engine.Run()
//	counts := engine.Counts()
package matcher

import (
	"fmt"

	"gst-reconciliation-service/internal/similarity"

	"github.com/shopspring/decimal"
)

// NamePreference selects which name field wins a tie-break when both
// names are present and conflict.
type NamePreference string

const (
	// PreferLegalName ranks candidates by legal-name similarity first.
	PreferLegalName NamePreference = "Legal Name"
	// PreferTradeName ranks candidates by trade-name similarity first.
	PreferTradeName NamePreference = "Trade Name"
)

// IsValid checks if the name preference is a known value
func (np NamePreference) IsValid() bool {
	return np == PreferLegalName || np == PreferTradeName
}

// ToleranceConfig holds the numeric, date and similarity tolerances
// consumed by every classification stage. The value is immutable during
// a pipeline run; reconfiguration requires a fresh engine.
type ToleranceConfig struct {
	// TaxAmountTolerance is the maximum allowed absolute difference of
	// the signed total tax (IGST+CGST+SGST) for one-to-one and invoice
	// group matching, in currency units.
	TaxAmountTolerance decimal.Decimal `json:"tax_amount_tolerance"`

	// DateToleranceDays is the maximum allowed invoice date difference
	// in days for partial matching.
	DateToleranceDays int `json:"date_tolerance_days"`

	// NameSimilarityThreshold is the minimum 0-100 name score that
	// establishes supplier identity.
	NameSimilarityThreshold float64 `json:"name_similarity_threshold"`

	// GSTINSimilarityThreshold is the minimum 0-100 identifier score
	// that establishes supplier identity.
	GSTINSimilarityThreshold float64 `json:"gstin_similarity_threshold"`

	// GroupTaxTolerance is the maximum allowed aggregate tax difference
	// for tax-based group matching, in currency units.
	GroupTaxTolerance decimal.Decimal `json:"group_tax_tolerance"`

	// NamePreference breaks ties between otherwise equal candidates.
	NamePreference NamePreference `json:"name_preference"`

	// CaseSensitiveNames disables case folding in name comparison.
	CaseSensitiveNames bool `json:"case_sensitive_names"`
}

// DefaultToleranceConfig returns the configuration with standard
// reconciliation defaults.
func DefaultToleranceConfig() *ToleranceConfig {
	return &ToleranceConfig{
		TaxAmountTolerance:       decimal.NewFromFloat(10.0),
		DateToleranceDays:        1,
		NameSimilarityThreshold:  70,
		GSTINSimilarityThreshold: 80,
		GroupTaxTolerance:        decimal.NewFromFloat(75.0),
		NamePreference:           PreferLegalName,
		CaseSensitiveNames:       false,
	}
}

// Validate checks the tolerance configuration. Negative tolerances and
// out-of-range thresholds are rejected before they reach the engine.
func (tc *ToleranceConfig) Validate() error {
	if tc.TaxAmountTolerance.IsNegative() {
		return fmt.Errorf("tax amount tolerance must be non-negative: %s", tc.TaxAmountTolerance)
	}

	if tc.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days must be non-negative: %d", tc.DateToleranceDays)
	}

	if tc.NameSimilarityThreshold < 0 || tc.NameSimilarityThreshold > 100 {
		return fmt.Errorf("name similarity threshold must be between 0 and 100: %f", tc.NameSimilarityThreshold)
	}

	if tc.GSTINSimilarityThreshold < 0 || tc.GSTINSimilarityThreshold > 100 {
		return fmt.Errorf("GSTIN similarity threshold must be between 0 and 100: %f", tc.GSTINSimilarityThreshold)
	}

	if tc.GroupTaxTolerance.IsNegative() {
		return fmt.Errorf("group tax tolerance must be non-negative: %s", tc.GroupTaxTolerance)
	}

	if !tc.NamePreference.IsValid() {
		return fmt.Errorf("invalid name preference: %s", tc.NamePreference)
	}

	return nil
}

// Clone creates a deep copy of the tolerance configuration
func (tc *ToleranceConfig) Clone() *ToleranceConfig {
	if tc == nil {
		return nil
	}
	clone := *tc
	return &clone
}

// Accepts applies the identity acceptance rule: a pair may only be
// classified as matched when the identifier similarity or at least one
// name similarity clears its threshold. This is a hard invariant for
// every non-exact classification, not a heuristic.
func (tc *ToleranceConfig) Accepts(sc similarity.Scores) bool {
	return sc.GSTIN >= tc.GSTINSimilarityThreshold ||
		sc.LegalName >= tc.NameSimilarityThreshold ||
		sc.TradeName >= tc.NameSimilarityThreshold
}

// WithinTaxTolerance checks a signed total tax difference against the
// tax amount tolerance. The boundary is inclusive at both signs.
func (tc *ToleranceConfig) WithinTaxTolerance(diff decimal.Decimal) bool {
	return diff.Abs().LessThanOrEqual(tc.TaxAmountTolerance)
}

// WithinGroupTaxTolerance checks an aggregate tax difference against
// the group tax tolerance. The boundary is inclusive.
func (tc *ToleranceConfig) WithinGroupTaxTolerance(diff decimal.Decimal) bool {
	return diff.Abs().LessThanOrEqual(tc.GroupTaxTolerance)
}

// WithinDateTolerance checks a signed date difference in days against
// the configured tolerance.
func (tc *ToleranceConfig) WithinDateTolerance(days int) bool {
	if days < 0 {
		days = -days
	}
	return days <= tc.DateToleranceDays
}

// PreferredNameScore returns the configured preferred name score,
// falling back to the other name when the preferred one scored zero
// (an absent name never decides a tie in its favor).
func (tc *ToleranceConfig) PreferredNameScore(sc similarity.Scores) float64 {
	preferred, fallback := sc.LegalName, sc.TradeName
	if tc.NamePreference == PreferTradeName {
		preferred, fallback = sc.TradeName, sc.LegalName
	}
	if preferred == 0 {
		return fallback
	}
	return preferred
}

// String returns a human-readable description of the configuration
func (tc *ToleranceConfig) String() string {
	return fmt.Sprintf("ToleranceConfig{TaxTolerance: %s, DateTolerance: %d days, NameThreshold: %.0f, GSTINThreshold: %.0f, GroupTaxTolerance: %s}",
		tc.TaxAmountTolerance, tc.DateToleranceDays, tc.NameSimilarityThreshold, tc.GSTINSimilarityThreshold, tc.GroupTaxTolerance)
}
