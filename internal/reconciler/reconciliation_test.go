package reconciler

import (
	"testing"
	"time"

	"gst-reconciliation-service/internal/matcher"
	"gst-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testRecord(id int, source models.Source, gstin, legalName, invoiceNumber string, igst float64) *models.LedgerRecord {
	ig := decimal.NewFromFloat(igst)
	return &models.LedgerRecord{
		ID:               id,
		Source:           source,
		GSTIN:            gstin,
		LegalName:        legalName,
		InvoiceNumber:    invoiceNumber,
		InvoiceDate:      testDate,
		TaxableValue:     ig.Mul(decimal.NewFromFloat(10)),
		IGST:             ig,
		InvoiceValue:     ig.Mul(decimal.NewFromFloat(11)),
		AmountsValid:     true,
		InvoiceDateValid: true,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := matcher.DefaultToleranceConfig()
	cfg.DateToleranceDays = -1

	if _, err := New(nil, cfg); err == nil {
		t.Fatal("expected error for invalid tolerance config")
	}
}

func TestEmptyInputYieldsEmptyResults(t *testing.T) {
	run, err := New(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := run.GetResults()
	if results.TotalCount != 0 {
		t.Errorf("TotalCount = %d, expected 0", results.TotalCount)
	}
	if len(results.FinalReport) != 0 {
		t.Errorf("FinalReport has %d rows, expected 0", len(results.FinalReport))
	}
	if results.RunID == "" {
		t.Error("empty runs still need a run ID")
	}
}

func TestGetResultsIsRepeatable(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(3, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INV002", 500),
	}

	run, err := New(records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := run.GetResults()
	second := run.GetResults()

	if first.MatchedCount != second.MatchedCount ||
		first.BooksOnlyCount != second.BooksOnlyCount ||
		first.TotalCount != second.TotalCount {
		t.Errorf("repeated GetResults disagree: %+v vs %+v", first, second)
	}
	if len(first.FinalReport) != len(second.FinalReport) {
		t.Errorf("report lengths differ: %d vs %d", len(first.FinalReport), len(second.FinalReport))
	}
}

func TestResultsCounts(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(3, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INV002", 500),
		testRecord(4, models.SourceGSTR2A, "07PQRST1234C1Z8", "Chennai Metals", "INV700", 90),
	}

	run, err := New(records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := run.GetResults()
	if results.MatchedCount != 2 {
		t.Errorf("MatchedCount = %d, expected 2", results.MatchedCount)
	}
	if results.BooksOnlyCount != 1 {
		t.Errorf("BooksOnlyCount = %d, expected 1", results.BooksOnlyCount)
	}
	if results.GSTR2AOnlyCount != 1 {
		t.Errorf("GSTR2AOnlyCount = %d, expected 1", results.GSTR2AOnlyCount)
	}
	if results.TotalCount != 4 {
		t.Errorf("TotalCount = %d, expected 4", results.TotalCount)
	}
	if len(results.FinalReport) != 4 {
		t.Errorf("FinalReport has %d rows, expected 4", len(results.FinalReport))
	}
}

func TestUnmappedSuppliers(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", 180),
		testRecord(3, models.SourceGSTR2A, "07PQRST1234C1Z8", "Chennai Metals", "INV700", 90),
	}

	run, err := New(records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unmapped := run.UnmappedSuppliers()
	if len(unmapped) != 1 {
		t.Fatalf("unmapped suppliers = %d, expected 1", len(unmapped))
	}
	if unmapped[0].GSTIN != "07PQRST1234C1Z8" {
		t.Errorf("unmapped GSTIN = %s, expected 07PQRST1234C1Z8", unmapped[0].GSTIN)
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	a, err := New(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := New(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RunID() == b.RunID() {
		t.Error("distinct runs must have distinct run IDs")
	}
}
