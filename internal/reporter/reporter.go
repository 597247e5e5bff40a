// Package reporter assembles annotated ledger records into the final
// reconciliation report and renders it to console, CSV or XLSX.
package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/settings"
	pkgerrors "gst-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

const dateLayout = "02-01-2006"

// ReportRow is one fully-derived line of the reconciliation report.
// Difference columns are pointers: nil means the record has no
// counterpart and the column renders as N/A.
type ReportRow struct {
	Source        models.Source      `json:"source"`
	GSTIN         string             `json:"gstin"`
	LegalName     string             `json:"legal_name"`
	TradeName     string             `json:"trade_name"`
	InvoiceNumber string             `json:"invoice_number"`
	InvoiceDate   string             `json:"invoice_date"`
	BooksDate     string             `json:"books_date"`
	TaxableValue  decimal.Decimal    `json:"taxable_value"`
	IGST          decimal.Decimal    `json:"igst"`
	CGST          decimal.Decimal    `json:"cgst"`
	SGST          decimal.Decimal    `json:"sgst"`
	InvoiceValue  decimal.Decimal    `json:"invoice_value"`
	Status        models.MatchStatus `json:"status"`
	MatchID       string             `json:"match_id,omitempty"`
	GroupID       string             `json:"group_id,omitempty"`

	GSTINScore     float64 `json:"gstin_score"`
	LegalNameScore float64 `json:"legal_name_score"`
	TradeNameScore float64 `json:"trade_name_score"`

	IGSTDiff     *decimal.Decimal `json:"igst_diff,omitempty"`
	CGSTDiff     *decimal.Decimal `json:"cgst_diff,omitempty"`
	SGSTDiff     *decimal.Decimal `json:"sgst_diff,omitempty"`
	TotalTaxDiff *decimal.Decimal `json:"total_tax_diff,omitempty"`
	DateDiff     *int             `json:"date_diff,omitempty"`

	TaxDiffStatus string `json:"tax_diff_status"`
	DateStatus    string `json:"date_status"`
}

// AnnotationLookup resolves a record ID to its match annotation.
type AnnotationLookup func(id int) *models.MatchAnnotation

// Assemble derives one report row per record, in input order. Missing
// annotations are treated as unprocessed, which should not happen
// after a pipeline run but keeps assembly total.
func Assemble(records []*models.LedgerRecord, lookup AnnotationLookup, st *settings.Settings) []*ReportRow {
	if st == nil {
		st = settings.New(nil)
	}

	rows := make([]*ReportRow, 0, len(records))
	for _, rec := range records {
		ann := lookup(rec.ID)
		if ann == nil {
			ann = models.NewAnnotation()
		}

		row := &ReportRow{
			Source:         rec.Source,
			GSTIN:          rec.GSTIN,
			LegalName:      rec.LegalName,
			TradeName:      rec.TradeName,
			InvoiceNumber:  rec.InvoiceNumber,
			TaxableValue:   rec.TaxableValue,
			IGST:           rec.IGST,
			CGST:           rec.CGST,
			SGST:           rec.SGST,
			InvoiceValue:   rec.InvoiceValue,
			Status:         ann.Status,
			MatchID:        ann.MatchID,
			GroupID:        ann.GroupID,
			GSTINScore:     ann.GSTINScore,
			LegalNameScore: ann.LegalNameScore,
			TradeNameScore: ann.TradeNameScore,
			TaxDiffStatus:  st.TaxDiffStatus(ann),
			DateStatus:     st.DateStatus(ann),
		}

		if rec.InvoiceDateValid {
			row.InvoiceDate = rec.InvoiceDate.Format(dateLayout)
		}
		if !rec.BooksDate.IsZero() {
			row.BooksDate = rec.BooksDate.Format(dateLayout)
		}

		if ann.HasCounterpart {
			igst, cgst, sgst := ann.IGSTDiff, ann.CGSTDiff, ann.SGSTDiff
			total := ann.TotalTaxDiff()
			row.IGSTDiff = &igst
			row.CGSTDiff = &cgst
			row.SGSTDiff = &sgst
			row.TotalTaxDiff = &total
			if !ann.Status.IsGrouped() {
				days := ann.DateDiff
				row.DateDiff = &days
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// Summary aggregates a finished report for the console view.
type Summary struct {
	TotalRecords  int
	BooksRecords  int
	GSTR2ARecords int

	RecordsByStatus map[models.MatchStatus]int

	TotalBooksTax  decimal.Decimal
	TotalGSTR2ATax decimal.Decimal
	NetTaxDiff     decimal.Decimal
}

// Summarize tallies record counts and tax totals across the report.
// NetTaxDiff is total Books tax minus total GSTR-2A tax, the figure a
// filing review starts from.
func Summarize(rows []*ReportRow) *Summary {
	s := &Summary{RecordsByStatus: make(map[models.MatchStatus]int)}
	for _, row := range rows {
		s.TotalRecords++
		s.RecordsByStatus[row.Status]++
		tax := row.IGST.Add(row.CGST).Add(row.SGST)
		switch row.Source {
		case models.SourceBooks:
			s.BooksRecords++
			s.TotalBooksTax = s.TotalBooksTax.Add(tax)
		case models.SourceGSTR2A:
			s.GSTR2ARecords++
			s.TotalGSTR2ATax = s.TotalGSTR2ATax.Add(tax)
		}
	}
	s.NetTaxDiff = s.TotalBooksTax.Sub(s.TotalGSTR2ATax)
	return s
}

// statusOrder fixes the display order of statuses in summaries.
var statusOrder = []models.MatchStatus{
	models.StatusExactMatch,
	models.StatusPartialMatch,
	models.StatusGroupMatch,
	models.StatusTaxBasedGroupMatch,
	models.StatusDataEntrySwapMatch,
	models.StatusBooksOnly,
	models.StatusGSTR2AOnly,
}

// RenderSummary writes the console summary.
func RenderSummary(w io.Writer, s *Summary) error {
	var lines []string
	lines = append(lines,
		"GST Reconciliation Summary",
		"==========================",
		fmt.Sprintf("Total records:    %d (Books: %d, GSTR-2A: %d)", s.TotalRecords, s.BooksRecords, s.GSTR2ARecords),
		"",
	)
	for _, status := range statusOrder {
		if count := s.RecordsByStatus[status]; count > 0 {
			lines = append(lines, fmt.Sprintf("  %-24s %d", status.String()+":", count))
		}
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Books tax total:   %s", FormatIndianCurrency(s.TotalBooksTax)),
		fmt.Sprintf("GSTR-2A tax total: %s", FormatIndianCurrency(s.TotalGSTR2ATax)),
		fmt.Sprintf("Net tax diff:      %s", FormatIndianCurrency(s.NetTaxDiff)),
	)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write summary")
		}
	}
	return nil
}

// csvHeader lists the report columns in output order.
var csvHeader = []string{
	"Source Name",
	"Supplier GSTIN",
	"Supplier Legal Name",
	"Supplier Trade Name",
	"Invoice Number",
	"Invoice Date",
	"Books Date",
	"Total Taxable Value",
	"Total IGST Amount",
	"Total CGST Amount",
	"Total SGST Amount",
	"Total Invoice Value",
	"Match Status",
	"Match ID",
	"Group ID",
	"GSTIN Score",
	"Legal Name Score",
	"Trade Name Score",
	"IGST Diff",
	"CGST Diff",
	"SGST Diff",
	"Total Tax Diff",
	"Date Diff (Days)",
	"Tax Diff Status",
	"Date Status",
}

// WriteCSV renders the full report as CSV. Absent differences render
// as N/A rather than zero so a missing counterpart cannot be read as
// perfect agreement.
func WriteCSV(w io.Writer, rows []*ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write CSV header")
	}

	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write CSV row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to flush CSV output")
	}
	return nil
}

func csvRecord(row *ReportRow) []string {
	return []string{
		row.Source.String(),
		row.GSTIN,
		row.LegalName,
		row.TradeName,
		row.InvoiceNumber,
		row.InvoiceDate,
		row.BooksDate,
		row.TaxableValue.StringFixed(2),
		row.IGST.StringFixed(2),
		row.CGST.StringFixed(2),
		row.SGST.StringFixed(2),
		row.InvoiceValue.StringFixed(2),
		row.Status.String(),
		row.MatchID,
		row.GroupID,
		fmt.Sprintf("%.1f", row.GSTINScore),
		fmt.Sprintf("%.1f", row.LegalNameScore),
		fmt.Sprintf("%.1f", row.TradeNameScore),
		decimalOrNA(row.IGSTDiff),
		decimalOrNA(row.CGSTDiff),
		decimalOrNA(row.SGSTDiff),
		decimalOrNA(row.TotalTaxDiff),
		intOrNA(row.DateDiff),
		row.TaxDiffStatus,
		row.DateStatus,
	}
}

func decimalOrNA(d *decimal.Decimal) string {
	if d == nil {
		return settings.NotApplicable
	}
	return d.StringFixed(2)
}

func intOrNA(i *int) string {
	if i == nil {
		return settings.NotApplicable
	}
	return fmt.Sprintf("%d", *i)
}

// SortRowsForDisplay orders rows by status precedence, then GSTIN,
// then invoice number. Assembly preserves input order; sorting is a
// presentation concern applied just before rendering.
func SortRowsForDisplay(rows []*ReportRow) {
	statusRank := make(map[models.MatchStatus]int, len(statusOrder))
	for i, status := range statusOrder {
		statusRank[status] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if statusRank[rows[i].Status] != statusRank[rows[j].Status] {
			return statusRank[rows[i].Status] < statusRank[rows[j].Status]
		}
		if rows[i].GSTIN != rows[j].GSTIN {
			return rows[i].GSTIN < rows[j].GSTIN
		}
		return rows[i].InvoiceNumber < rows[j].InvoiceNumber
	})
}
