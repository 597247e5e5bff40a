package matcher

import (
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/pkg/logger"
)

// Priority ranks how promising a recommended matching pattern is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Recommendation describes one matching pattern the planner suggests
// applying to the residual one-sided records.
type Recommendation struct {
	Pattern          string   `json:"pattern"`
	Priority         Priority `json:"priority"`
	Description      string   `json:"description"`
	EstimatedMatches int      `json:"estimated_matches"`
}

// EnhancedMatchingAnalysis summarizes the residue the baseline
// pipeline left behind and ranks follow-up patterns by estimated
// yield.
type EnhancedMatchingAnalysis struct {
	BooksOnlyCount          int              `json:"books_only_count"`
	GSTR2AOnlyCount         int              `json:"gstr2a_only_count"`
	PartialsWithDiffCount   int              `json:"partials_with_diff_count"`
	PotentialInvoiceGroups  int              `json:"potential_invoice_groups"`
	PotentialSupplierGroups int              `json:"potential_supplier_groups"`
	Recommendations         []Recommendation `json:"recommendations"`
}

// EnhancedMatchingResult reports what applying the plan changed.
type EnhancedMatchingResult struct {
	Analysis         *EnhancedMatchingAnalysis `json:"analysis"`
	GroupsApplied    int                       `json:"groups_applied"`
	TaxGroupsApplied int                       `json:"tax_groups_applied"`
	RecordsReclaimed int                       `json:"records_reclaimed"`
}

// AnalyzeEnhancedMatching inspects residual one-sided records and
// partial matches that still carry a tax difference, and estimates
// how many an extra grouped pass could consume. Analysis never
// mutates annotations.
func (e *Engine) AnalyzeEnhancedMatching() *EnhancedMatchingAnalysis {
	analysis := &EnhancedMatchingAnalysis{}

	for _, rec := range e.records {
		ann := e.anns[rec.ID]
		switch ann.Status {
		case models.StatusBooksOnly:
			analysis.BooksOnlyCount++
		case models.StatusGSTR2AOnly:
			analysis.GSTR2AOnlyCount++
		case models.StatusPartialMatch:
			if !ann.TotalTaxDiff().IsZero() {
				analysis.PartialsWithDiffCount++
			}
		}
	}

	invoiceCandidates := 0
	for _, key := range e.books.keys() {
		bs := e.eligibleRecords(e.books.lookupKey(key), oneSidedOnly)
		gs := e.eligibleRecords(e.gstr2a.lookupKey(key), oneSidedOnly)
		if len(bs) > 0 && len(gs) > 0 {
			analysis.PotentialInvoiceGroups++
			invoiceCandidates += len(bs) + len(gs)
		}
	}

	supplierCandidates := 0
	for _, gstin := range e.books.gstins() {
		bs := e.eligibleRecords(e.books.lookupGSTIN(gstin), oneSidedOnly)
		gs := e.eligibleRecords(e.gstr2a.lookupGSTIN(gstin), oneSidedOnly)
		if len(bs) > 0 && len(gs) > 0 {
			analysis.PotentialSupplierGroups++
			supplierCandidates += len(bs) + len(gs)
		}
	}

	pool := analysis.BooksOnlyCount + analysis.GSTR2AOnlyCount
	if analysis.PotentialInvoiceGroups > 0 {
		analysis.Recommendations = append(analysis.Recommendations, Recommendation{
			Pattern:          "invoice-group",
			Priority:         priorityFor(estimateRatio(invoiceCandidates, pool)),
			Description:      "group unmatched records sharing GSTIN and invoice number and compare aggregate tax",
			EstimatedMatches: invoiceCandidates,
		})
	}
	if analysis.PotentialSupplierGroups > 0 {
		analysis.Recommendations = append(analysis.Recommendations, Recommendation{
			Pattern:          "supplier-tax-group",
			Priority:         priorityFor(estimateRatio(supplierCandidates, pool)),
			Description:      "group unmatched records per supplier and compare aggregate tax across invoice numbers",
			EstimatedMatches: supplierCandidates,
		})
	}

	return analysis
}

func priorityFor(ratio float64) Priority {
	switch {
	case ratio >= 0.5:
		return PriorityHigh
	case ratio >= 0.2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// RunIntelligentEnhancedMatching analyzes the residue, then reruns the
// grouped passes restricted to one-sided records. Frozen one-to-one
// matches are never reopened; only Books Only and GSTR-2A Only records
// can change status here. The call is idempotent: a second invocation
// finds no remaining candidate groups.
func (e *Engine) RunIntelligentEnhancedMatching() *EnhancedMatchingResult {
	analysis := e.AnalyzeEnhancedMatching()

	before := e.Counts()
	groups := e.runGroupPass(oneSidedOnly)
	taxGroups := e.runTaxGroupPass(oneSidedOnly)
	after := e.Counts()

	reclaimed := (before.BooksOnly + before.GSTR2AOnly) - (after.BooksOnly + after.GSTR2AOnly)

	e.log.WithFields(logger.Fields{
		"groups_applied":     groups,
		"tax_groups_applied": taxGroups,
		"records_reclaimed":  reclaimed,
	}).Info("Enhanced matching complete")

	return &EnhancedMatchingResult{
		Analysis:         analysis,
		GroupsApplied:    groups,
		TaxGroupsApplied: taxGroups,
		RecordsReclaimed: reclaimed,
	}
}
