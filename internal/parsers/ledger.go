package parsers

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gst-reconciliation-service/internal/models"
	pkgerrors "gst-reconciliation-service/pkg/errors"
	"gst-reconciliation-service/pkg/logger"
)

// ParseLedgerFile loads a ledger export, dispatching on the file
// extension. All records get the given source.
func ParseLedgerFile(path string, source models.Source) ([]*models.LedgerRecord, *ParseStats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSVFile(path, source)
	case ".xlsx", ".xlsm":
		return ParseXLSXFile(path, source)
	default:
		return nil, nil, pkgerrors.ParseError(pkgerrors.CodeUnsupportedFile, path, 0, "", "", nil)
	}
}

// ParseCSVFile loads a CSV ledger export from disk.
func ParseCSVFile(path string, source models.Source) ([]*models.LedgerRecord, *ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, pkgerrors.FileError(pkgerrors.CodeFilePermission, path, err)
		}
		return nil, nil, pkgerrors.FileError(pkgerrors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	return ParseCSV(f, path, source)
}

// ParseCSV parses a CSV ledger from a reader. The first row must be a
// header containing every required column.
func ParseCSV(r io.Reader, filename string, source models.Source) ([]*models.LedgerRecord, *ParseStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, filename, 0, "", "", err)
	}

	return parseTable(rows, filename, source)
}

// parseTable converts raw rows into ledger records. Rows failing on
// amounts or dates are kept with validity flags cleared; fully empty
// rows are skipped.
func parseTable(rows [][]string, filename string, source models.Source) ([]*models.LedgerRecord, *ParseStats, error) {
	if len(rows) == 0 {
		return nil, nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, filename, 0, "", "", nil).
			WithSuggestion("the file is empty; provide a ledger with a header row")
	}

	idx, err := resolveColumns(rows[0], filename)
	if err != nil {
		return nil, nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("parsers").WithField("file", filename)
	stats := &ParseStats{}
	var records []*models.LedgerRecord

	for i, row := range rows[1:] {
		line := i + 2
		stats.TotalRows++

		if isEmptyRow(row) {
			stats.SkippedRows++
			continue
		}

		rec := &models.LedgerRecord{
			Source:           source,
			GSTIN:            cell(row, idx, colGSTIN),
			LegalName:        cell(row, idx, colLegalName),
			TradeName:        cell(row, idx, colTradeName),
			InvoiceNumber:    cell(row, idx, colInvoiceNumber),
			AmountsValid:     true,
			InvoiceDateValid: false,
		}

		if err := parseAmounts(rec, row, idx, filename, line, stats); err != nil {
			stats.AmountErrors++
			rec.AmountsValid = false
		}

		if raw := cell(row, idx, colInvoiceDate); raw != "" {
			if d, err := models.ParseDateWithFormats(raw); err == nil {
				rec.InvoiceDate = d
				rec.InvoiceDateValid = true
			} else {
				stats.DateErrors++
				stats.Errors = append(stats.Errors,
					pkgerrors.ParseError(pkgerrors.CodeInvalidData, filename, line, displayName(colInvoiceDate), raw, err))
			}
		}
		if raw := cell(row, idx, colBooksDate); raw != "" {
			if d, err := models.ParseDateWithFormats(raw); err == nil {
				rec.BooksDate = d
			}
		}

		records = append(records, rec)
		stats.ParsedRecords++
	}

	log.WithFields(logger.Fields{
		"rows":          stats.TotalRows,
		"parsed":        stats.ParsedRecords,
		"amount_errors": stats.AmountErrors,
		"date_errors":   stats.DateErrors,
	}).Info("Parsed ledger file")

	return records, stats, nil
}

// parseAmounts fills the five amount columns. The first failure aborts
// and taints the whole record; the matcher ignores tainted amounts.
func parseAmounts(rec *models.LedgerRecord, row []string, idx columnIndex, filename string, line int, stats *ParseStats) error {
	cols := []string{colTaxableValue, colIGST, colCGST, colSGST, colInvoiceValue}

	for _, col := range cols {
		raw := cell(row, idx, col)
		if raw == "" {
			// blank amounts read as zero
			continue
		}
		d, err := models.ParseDecimalFromString(raw)
		if err != nil {
			stats.Errors = append(stats.Errors,
				pkgerrors.ParseError(pkgerrors.CodeInvalidData, filename, line, displayName(col), raw, err))
			return err
		}
		switch col {
		case colTaxableValue:
			rec.TaxableValue = d
		case colIGST:
			rec.IGST = d
		case colCGST:
			rec.CGST = d
		case colSGST:
			rec.SGST = d
		case colInvoiceValue:
			rec.InvoiceValue = d
		}
	}
	return nil
}

func cell(row []string, idx columnIndex, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Combine merges the two ledgers into one slice with unique record
// IDs, Books first. The matcher and reporter both depend on this
// ordering being stable.
func Combine(books, gstr2a []*models.LedgerRecord) []*models.LedgerRecord {
	combined := make([]*models.LedgerRecord, 0, len(books)+len(gstr2a))
	combined = append(combined, books...)
	combined = append(combined, gstr2a...)
	for i, rec := range combined {
		rec.ID = i + 1
	}
	return combined
}
