package matcher

import (
	"testing"

	"gst-reconciliation-service/internal/models"
)

// plannerRecords returns a ledger the baseline pipeline leaves fully
// one-sided: the aggregate tax diff of 100 exceeds both group
// tolerances and the dates are too far apart for partial matching.
func plannerRecords() []*models.LedgerRecord {
	farDate := testDate.AddDate(0, 2, 0)
	return []*models.LedgerRecord{
		// Books invoice split across two GSTR-2A entries, names too
		// different for partial matching and dates far apart.
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", testDate, 10000, 1500, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", farDate, 7000, 1000, 0, 0),
		testRecord(3, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", farDate, 3000, 600, 0, 0),
	}
}

func TestAnalyzeEnhancedMatching(t *testing.T) {
	records := plannerRecords()
	e := NewEngine(records, nil)
	e.Run()

	// Aggregate diff is 100, outside the invoice-group tolerance of 10
	// but within the supplier-group tolerance at a higher setting; with
	// defaults all three records stay one-sided.
	analysis := e.AnalyzeEnhancedMatching()

	if analysis.BooksOnlyCount != 1 {
		t.Errorf("BooksOnlyCount = %d, expected 1", analysis.BooksOnlyCount)
	}
	if analysis.GSTR2AOnlyCount != 2 {
		t.Errorf("GSTR2AOnlyCount = %d, expected 2", analysis.GSTR2AOnlyCount)
	}
	if analysis.PotentialInvoiceGroups != 1 {
		t.Errorf("PotentialInvoiceGroups = %d, expected 1", analysis.PotentialInvoiceGroups)
	}
	if analysis.PotentialSupplierGroups != 1 {
		t.Errorf("PotentialSupplierGroups = %d, expected 1", analysis.PotentialSupplierGroups)
	}
	if len(analysis.Recommendations) == 0 {
		t.Fatal("expected at least one recommendation")
	}

	// Every residual record belongs to a candidate group.
	for _, rec := range analysis.Recommendations {
		if rec.Priority != PriorityHigh {
			t.Errorf("recommendation %s priority = %s, expected %s", rec.Pattern, rec.Priority, PriorityHigh)
		}
	}
}

func TestAnalyzeDoesNotMutate(t *testing.T) {
	e := NewEngine(plannerRecords(), nil)
	e.Run()

	before := e.Counts()
	e.AnalyzeEnhancedMatching()
	after := e.Counts()

	if before != after {
		t.Errorf("analysis changed counts: %+v vs %+v", before, after)
	}
}

func TestEnhancedMatchingLeavesRejectedResidueAlone(t *testing.T) {
	// Aggregate diff of 100 exceeds both group tolerances, so the
	// enhanced pass must change nothing.
	e := NewEngine(plannerRecords(), nil)
	e.Run()

	result := e.RunIntelligentEnhancedMatching()
	if result.RecordsReclaimed != 0 {
		t.Errorf("RecordsReclaimed = %d, expected 0", result.RecordsReclaimed)
	}
}

func TestRunIntelligentEnhancedMatching(t *testing.T) {
	// The baseline supplier-group pass sees records 1-4 together and
	// rejects the supplier: the swap pair's transposed amounts blow the
	// aggregate out of tolerance. Once the swap pass has consumed the
	// pair, the remaining 500 vs 530 sits within the 75 group
	// tolerance, but only the enhanced pass runs grouping again.
	e := NewEngine([]*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVA", testDate, 3000, 500, 0, 0),
		testRecord(2, models.SourceGSTR2A, "29XYZDE5678B2W9", "Bharat Traders", "INVB", testDate, 3200, 530, 0, 0),
		testRecord(3, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVS", testDate, 1000, 180, 0, 0),
		testRecord(4, models.SourceGSTR2A, "29XYZDE5678B2W9", "Bharat Traders", "INVS", testDate, 180, 1000, 0, 0),
	}, nil)
	e.Run()

	if got := e.Annotation(3).Status; got != models.StatusDataEntrySwapMatch {
		t.Fatalf("swap pair status = %s, expected %s", got, models.StatusDataEntrySwapMatch)
	}
	if counts := e.Counts(); counts.BooksOnly != 1 || counts.GSTR2AOnly != 1 {
		t.Fatalf("expected one-sided residue, got %+v", counts)
	}

	result := e.RunIntelligentEnhancedMatching()
	if result.TaxGroupsApplied != 1 {
		t.Errorf("TaxGroupsApplied = %d, expected 1", result.TaxGroupsApplied)
	}
	if result.RecordsReclaimed != 2 {
		t.Errorf("RecordsReclaimed = %d, expected 2", result.RecordsReclaimed)
	}

	for _, id := range []int{1, 2} {
		if got := e.Annotation(id).Status; got != models.StatusTaxBasedGroupMatch {
			t.Errorf("record %d status = %s, expected %s", id, got, models.StatusTaxBasedGroupMatch)
		}
	}

	// Idempotence: a second invocation finds nothing left to do.
	again := e.RunIntelligentEnhancedMatching()
	if again.RecordsReclaimed != 0 || again.GroupsApplied != 0 || again.TaxGroupsApplied != 0 {
		t.Errorf("second enhanced run should be a no-op, got %+v", again)
	}
}

func TestEnhancedMatchingNeverReopensFrozenMatches(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()
	e.RunIntelligentEnhancedMatching()

	for _, id := range []int{1, 2} {
		if got := e.Annotation(id).Status; got != models.StatusExactMatch {
			t.Errorf("record %d status = %s, expected %s to survive enhanced matching", id, got, models.StatusExactMatch)
		}
	}
}
