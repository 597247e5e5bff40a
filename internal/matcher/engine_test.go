package matcher

import (
	"testing"
	"time"

	"gst-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// testRecord builds a valid ledger record for pipeline tests. Invoice
// value is derived so the amount columns stay internally consistent.
func testRecord(id int, source models.Source, gstin, legalName, invoiceNumber string, date time.Time, taxable, igst, cgst, sgst float64) *models.LedgerRecord {
	tv := decimal.NewFromFloat(taxable)
	ig := decimal.NewFromFloat(igst)
	cg := decimal.NewFromFloat(cgst)
	sg := decimal.NewFromFloat(sgst)

	return &models.LedgerRecord{
		ID:               id,
		Source:           source,
		GSTIN:            gstin,
		LegalName:        legalName,
		InvoiceNumber:    invoiceNumber,
		InvoiceDate:      date,
		TaxableValue:     tv,
		IGST:             ig,
		CGST:             cg,
		SGST:             sg,
		InvoiceValue:     tv.Add(ig).Add(cg).Add(sg),
		AmountsValid:     true,
		InvoiceDateValid: true,
	}
}

func statusOf(t *testing.T, e *Engine, id int) models.MatchStatus {
	t.Helper()
	ann := e.Annotation(id)
	if ann == nil {
		t.Fatalf("no annotation for record %d", id)
	}
	return ann.Status
}

func TestExactMatch(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	for _, id := range []int{1, 2} {
		if got := statusOf(t, e, id); got != models.StatusExactMatch {
			t.Errorf("record %d status = %s, expected %s", id, got, models.StatusExactMatch)
		}
	}

	a1, a2 := e.Annotation(1), e.Annotation(2)
	if a1.MatchID == "" || a1.MatchID != a2.MatchID {
		t.Errorf("paired records should share a match ID, got %q and %q", a1.MatchID, a2.MatchID)
	}
	if !a1.TotalTaxDiff().IsZero() {
		t.Errorf("exact match tax diff = %s, expected zero", a1.TotalTaxDiff())
	}
	if !a1.Frozen {
		t.Error("one-to-one matches must be frozen")
	}
}

func TestExactMatchTakesPrecedenceOverPartial(t *testing.T) {
	// Both candidates are admissible partials; only g2 is exact.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate.AddDate(0, 0, 1), 1000, 175, 0, 0),
		testRecord(3, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	if got := statusOf(t, e, 1); got != models.StatusExactMatch {
		t.Errorf("books record status = %s, expected %s", got, models.StatusExactMatch)
	}
	if got := statusOf(t, e, 3); got != models.StatusExactMatch {
		t.Errorf("exact counterpart status = %s, expected %s", got, models.StatusExactMatch)
	}
}

func TestPartialMatchAcrossDifferentGSTINs(t *testing.T) {
	// Different suppliers' registrations but an identical legal name:
	// the name alone establishes identity.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV003", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "29XYZDE5678B2W9", "Acme Industries Ltd", "INV004", testDate.AddDate(0, 0, 1), 1000, 175, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	for _, id := range []int{1, 2} {
		if got := statusOf(t, e, id); got != models.StatusPartialMatch {
			t.Errorf("record %d status = %s, expected %s", id, got, models.StatusPartialMatch)
		}
	}

	ann := e.Annotation(1)
	if ann.LegalNameScore != 100 {
		t.Errorf("legal name score = %f, expected 100", ann.LegalNameScore)
	}
	expected := decimal.NewFromFloat(5)
	if !ann.TotalTaxDiff().Equal(expected) {
		t.Errorf("tax diff = %s, expected %s", ann.TotalTaxDiff(), expected)
	}
	if ann.DateDiff != -1 {
		t.Errorf("date diff = %d, expected -1", ann.DateDiff)
	}
}

func TestNoMatchWithoutAcceptedIdentity(t *testing.T) {
	// Amounts agree within tolerance, but neither identifier nor name
	// similarity clears a threshold, so the pair must stay unmatched.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "33QWERT9999F1X2", "Zenith Polymers", "INV900", testDate, 1000, 180, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	if got := statusOf(t, e, 1); got != models.StatusBooksOnly {
		t.Errorf("books record status = %s, expected %s", got, models.StatusBooksOnly)
	}
	if got := statusOf(t, e, 2); got != models.StatusGSTR2AOnly {
		t.Errorf("gstr2a record status = %s, expected %s", got, models.StatusGSTR2AOnly)
	}
}

func TestGroupMatch(t *testing.T) {
	// One Books invoice split into two GSTR-2A entries under the same
	// identity key: 1500 = 1000 + 500.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", testDate, 10000, 1500, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", testDate, 7000, 1000, 0, 0),
		testRecord(3, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV100", testDate, 3000, 500, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	var groupID string
	for _, id := range []int{1, 2, 3} {
		ann := e.Annotation(id)
		if ann.Status != models.StatusGroupMatch {
			t.Errorf("record %d status = %s, expected %s", id, ann.Status, models.StatusGroupMatch)
		}
		if groupID == "" {
			groupID = ann.GroupID
		} else if ann.GroupID != groupID {
			t.Errorf("record %d group ID = %q, expected %q", id, ann.GroupID, groupID)
		}
	}
	if groupID == "" {
		t.Fatal("group members must carry a group ID")
	}

	if counts := e.Counts(); counts.Groups != 1 {
		t.Errorf("group count = %d, expected 1", counts.Groups)
	}
}

func TestTaxBasedGroupMatch(t *testing.T) {
	// Invoice numbers disagree entirely, but the supplier's aggregate
	// tax agrees within the group tolerance: 500 + 530 vs 1000.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVA", testDate, 3000, 500, 0, 0),
		testRecord(2, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVB", testDate, 3200, 530, 0, 0),
		testRecord(3, models.SourceGSTR2A, "29XYZDE5678B2W9", "Bharat Traders", "INVC", testDate, 6100, 1000, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	for _, id := range []int{1, 2, 3} {
		if got := statusOf(t, e, id); got != models.StatusTaxBasedGroupMatch {
			t.Errorf("record %d status = %s, expected %s", id, got, models.StatusTaxBasedGroupMatch)
		}
	}

	if counts := e.Counts(); counts.TaxGroups != 1 {
		t.Errorf("tax group count = %d, expected 1", counts.TaxGroups)
	}
}

func TestDataEntrySwapMatch(t *testing.T) {
	// Taxable value and IGST transposed on the GSTR-2A side.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV200", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV200", testDate, 180, 1000, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	for _, id := range []int{1, 2} {
		if got := statusOf(t, e, id); got != models.StatusDataEntrySwapMatch {
			t.Errorf("record %d status = %s, expected %s", id, got, models.StatusDataEntrySwapMatch)
		}
	}
	if !e.Annotation(1).Frozen {
		t.Error("swap matches must be frozen")
	}
}

func TestCGSTSGSTSwap(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV201", testDate, 1000, 0, 90, 45),
		testRecord(2, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV201", testDate, 1000, 0, 45, 90),
	}

	e := NewEngine(records, nil)
	e.Run()

	if got := statusOf(t, e, 1); got != models.StatusDataEntrySwapMatch {
		t.Errorf("status = %s, expected %s", got, models.StatusDataEntrySwapMatch)
	}
}

func TestEveryRecordGetsExactlyOneStatus(t *testing.T) {
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(2, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INV002", testDate, 2000, 360, 0, 0),
		testRecord(3, models.SourceBooks, "07PQRST1234C1Z8", "Chennai Metals", "INV003", testDate, 500, 0, 45, 45),
		testRecord(4, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(5, models.SourceGSTR2A, "29XYZDE5678B2W9", "Bharat Traders", "INV002", testDate.AddDate(0, 0, 1), 2000, 355, 0, 0),
		testRecord(6, models.SourceGSTR2A, "24LMNOP9876D3Z1", "Delta Logistics", "INV500", testDate, 900, 162, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	perStatus := make(map[models.MatchStatus]int)
	for _, rec := range records {
		ann := e.Annotation(rec.ID)
		if ann.Status == models.StatusUnprocessed {
			t.Errorf("record %d left unprocessed after Run", rec.ID)
		}
		perStatus[ann.Status]++
	}

	total := 0
	for _, n := range perStatus {
		total += n
	}
	if total != len(records) {
		t.Errorf("classified %d records, expected %d", total, len(records))
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	build := func() []*models.LedgerRecord {
		return []*models.LedgerRecord{
			testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
			testRecord(2, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVA", testDate, 3000, 500, 0, 0),
			testRecord(3, models.SourceBooks, "29XYZDE5678B2W9", "Bharat Traders", "INVB", testDate, 3200, 530, 0, 0),
			testRecord(4, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
			testRecord(5, models.SourceGSTR2A, "29XYZDE5678B2W9", "Bharat Traders", "INVC", testDate, 6100, 1000, 0, 0),
		}
	}

	e1 := NewEngine(build(), nil)
	e1.Run()
	e2 := NewEngine(build(), nil)
	e2.Run()

	for id := 1; id <= 5; id++ {
		a1, a2 := e1.Annotation(id), e2.Annotation(id)
		if a1.Status != a2.Status {
			t.Errorf("record %d status differs between runs: %s vs %s", id, a1.Status, a2.Status)
		}
		if a1.MatchID != a2.MatchID || a1.GroupID != a2.GroupID {
			t.Errorf("record %d identifiers differ between runs", id)
		}
	}
}

func TestInvalidGSTINExcludedFromGrouping(t *testing.T) {
	// Malformed identifiers never join identifier-keyed groups, even
	// when the aggregate amounts would agree.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "GSTIN001", "Eastern Supplies", "INV300", testDate, 10000, 1500, 0, 0),
		testRecord(2, models.SourceGSTR2A, "GSTIN001", "Supplies Ltd", "INV300", testDate.AddDate(0, 0, 30), 7000, 1000, 0, 0),
		testRecord(3, models.SourceGSTR2A, "GSTIN001", "Supplies Ltd", "INV300", testDate.AddDate(0, 0, 30), 3000, 500, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	for _, id := range []int{1, 2, 3} {
		if got := statusOf(t, e, id); got == models.StatusGroupMatch || got == models.StatusTaxBasedGroupMatch {
			t.Errorf("record %d with invalid GSTIN must not join a group, got %s", id, got)
		}
	}
}

func TestDuplicateRecordIDsGetDistinctAnnotations(t *testing.T) {
	// Two records arriving with the same ID must not alias one
	// annotation; the engine renumbers the collision and still
	// classifies every record.
	records := []*models.LedgerRecord{
		testRecord(1, models.SourceBooks, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
		testRecord(1, models.SourceGSTR2A, "27AABCA1234A1Z5", "Acme Industries Ltd", "INV001", testDate, 1000, 180, 0, 0),
	}

	e := NewEngine(records, nil)
	e.Run()

	if records[0].ID == records[1].ID {
		t.Fatalf("duplicate IDs were not renumbered: both %d", records[0].ID)
	}

	seen := make(map[*models.MatchAnnotation]bool)
	for _, rec := range records {
		ann := e.Annotation(rec.ID)
		if ann == nil {
			t.Fatalf("no annotation for record %d", rec.ID)
		}
		if seen[ann] {
			t.Error("records share one annotation")
		}
		seen[ann] = true
		if ann.Status != models.StatusExactMatch {
			t.Errorf("record %d status = %s, expected %s", rec.ID, ann.Status, models.StatusExactMatch)
		}
	}

	if counts := e.Counts(); counts.Total != 2 || counts.Exact != 2 {
		t.Errorf("counts = %+v, expected 2 records both exact", counts)
	}
}

func TestEmptyInput(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Run()

	counts := e.Counts()
	if counts.Total != 0 {
		t.Errorf("total = %d, expected 0", counts.Total)
	}
}
