// Package reconciler ties the pipeline together: it runs the matching
// engine over a combined ledger and exposes the assembled results.
package reconciler

import (
	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/reporter"
	"gst-reconciliation-service/internal/settings"
	pkgerrors "gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
)

// Results is the complete outcome of one reconciliation run. One-to-one
// statuses count records; grouped statuses count distinct groups.
type Results struct {
	RunID string `json:"run_id"`

	MatchedCount       int `json:"matched_count"`
	PartialCount       int `json:"partial_count"`
	GroupCount         int `json:"group_count"`
	TaxBasedGroupCount int `json:"tax_based_group_count"`
	DataEntrySwapCount int `json:"data_entry_swap_count"`
	BooksOnlyCount     int `json:"books_only_count"`
	GSTR2AOnlyCount    int `json:"gstr2a_only_count"`
	TotalCount         int `json:"total_count"`

	FinalReport []*reporter.ReportRow `json:"final_report"`
	Summary     *reporter.Summary     `json:"summary"`
}

// Reconciliation owns one pipeline run. The engine runs once at
// construction; enhanced matching can refine the outcome afterwards.
type Reconciliation struct {
	runID    string
	engine   *matcher.Engine
	settings *settings.Settings
	log      logger.Logger
}

// New validates the configuration, builds the engine and runs the
// baseline pipeline. Empty input is not an error; it yields a run
// whose results are all zero.
func New(records []*models.LedgerRecord, cfg *matcher.ToleranceConfig) (*Reconciliation, error) {
	if cfg == nil {
		cfg = matcher.DefaultToleranceConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.ConfigurationError(pkgerrors.CodeInvalidConfig, "tolerances", cfg.String(), err)
	}

	r := &Reconciliation{
		runID:    uuid.New().String(),
		engine:   matcher.NewEngine(records, cfg),
		settings: settings.New(cfg),
		log:      logger.GetGlobalLogger().WithComponent("reconciler"),
	}

	r.log.WithFields(logger.Fields{
		"run_id":  r.runID,
		"records": len(records),
	}).Info("Starting reconciliation run")

	r.engine.Run()
	return r, nil
}

// RunID returns the unique identifier of this run.
func (r *Reconciliation) RunID() string {
	return r.runID
}

// GetResults assembles the current results. The call is read-only and
// repeatable; calling it twice without intervening passes yields equal
// results.
func (r *Reconciliation) GetResults() *Results {
	counts := r.engine.Counts()
	rows := reporter.Assemble(r.engine.Records(), r.engine.Annotation, r.settings)

	return &Results{
		RunID:              r.runID,
		MatchedCount:       counts.Exact,
		PartialCount:       counts.Partial,
		GroupCount:         counts.Groups,
		TaxBasedGroupCount: counts.TaxGroups,
		DataEntrySwapCount: counts.DataEntrySwap,
		BooksOnlyCount:     counts.BooksOnly,
		GSTR2AOnlyCount:    counts.GSTR2AOnly,
		TotalCount:         counts.Total,
		FinalReport:        rows,
		Summary:            reporter.Summarize(rows),
	}
}

// AnalyzeEnhancedMatching inspects the residue without changing it.
func (r *Reconciliation) AnalyzeEnhancedMatching() *matcher.EnhancedMatchingAnalysis {
	return r.engine.AnalyzeEnhancedMatching()
}

// RunIntelligentEnhancedMatching applies the planner's follow-up
// passes to the one-sided residue. Frozen matches are untouched.
func (r *Reconciliation) RunIntelligentEnhancedMatching() *matcher.EnhancedMatchingResult {
	return r.engine.RunIntelligentEnhancedMatching()
}

// UnmappedSuppliers reports GSTR-2A suppliers absent from Books.
func (r *Reconciliation) UnmappedSuppliers() []*reporter.UnmappedSupplier {
	return reporter.BuildUnmappedReport(r.engine.Records())
}
