package reporter

import (
	"fmt"

	"gst-reconciliation-service/internal/settings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	pkgerrors "gst-reconciliation-service/pkg/errors"
)

const (
	reportSheet  = "Reconciliation"
	summarySheet = "Summary"
)

// WriteXLSX renders the report workbook: one sheet with the full
// report, one with the summary. Amount columns are written as numbers
// so spreadsheet filters and sums work on them directly.
func WriteXLSX(path string, rows []*ReportRow, summary *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to create report sheet")
	}

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write report header")
	}

	for i, row := range rows {
		cells := xlsxRecord(row)
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(reportSheet, cell, &cells); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write report row")
		}
	}

	if summary != nil {
		if err := writeSummarySheet(f, summary); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return pkgerrors.FileError(pkgerrors.CodeFilePermission, path, err)
	}
	return nil
}

func xlsxRecord(row *ReportRow) []interface{} {
	return []interface{}{
		row.Source.String(),
		row.GSTIN,
		row.LegalName,
		row.TradeName,
		row.InvoiceNumber,
		row.InvoiceDate,
		row.BooksDate,
		row.TaxableValue.InexactFloat64(),
		row.IGST.InexactFloat64(),
		row.CGST.InexactFloat64(),
		row.SGST.InexactFloat64(),
		row.InvoiceValue.InexactFloat64(),
		row.Status.String(),
		row.MatchID,
		row.GroupID,
		row.GSTINScore,
		row.LegalNameScore,
		row.TradeNameScore,
		decimalCellOrNA(row.IGSTDiff),
		decimalCellOrNA(row.CGSTDiff),
		decimalCellOrNA(row.SGSTDiff),
		decimalCellOrNA(row.TotalTaxDiff),
		intCellOrNA(row.DateDiff),
		row.TaxDiffStatus,
		row.DateStatus,
	}
}

func decimalCellOrNA(d *decimal.Decimal) interface{} {
	if d == nil {
		return settings.NotApplicable
	}
	return d.InexactFloat64()
}

func intCellOrNA(i *int) interface{} {
	if i == nil {
		return settings.NotApplicable
	}
	return *i
}

func writeSummarySheet(f *excelize.File, s *Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to create summary sheet")
	}

	lines := [][]interface{}{
		{"Total Records", s.TotalRecords},
		{"Books Records", s.BooksRecords},
		{"GSTR-2A Records", s.GSTR2ARecords},
		{},
	}
	for _, status := range statusOrder {
		if count := s.RecordsByStatus[status]; count > 0 {
			lines = append(lines, []interface{}{status.String(), count})
		}
	}
	lines = append(lines,
		[]interface{}{},
		[]interface{}{"Books Tax Total", s.TotalBooksTax.InexactFloat64()},
		[]interface{}{"GSTR-2A Tax Total", s.TotalGSTR2ATax.InexactFloat64()},
		[]interface{}{"Net Tax Diff", s.NetTaxDiff.InexactFloat64()},
	)

	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write summary row")
		}
	}
	return nil
}
