// Package parsers loads Books and GSTR-2A ledgers from CSV and XLSX
// exports into ledger records. Parsing is lenient where the pipeline
// can compensate: a bad amount or date flags the record rather than
// rejecting the file.
package parsers

import (
	"strings"

	pkgerrors "gst-reconciliation-service/pkg/errors"
)

// Canonical column identifiers used internally.
const (
	colGSTIN         = "gstin"
	colLegalName     = "legal_name"
	colTradeName     = "trade_name"
	colInvoiceNumber = "invoice_number"
	colInvoiceDate   = "invoice_date"
	colBooksDate     = "books_date"
	colTaxableValue  = "taxable_value"
	colIGST          = "igst"
	colCGST          = "cgst"
	colSGST          = "sgst"
	colInvoiceValue  = "invoice_value"
)

// columnAliases maps canonical columns to the header spellings found
// in real ledger exports. Matching is case-insensitive after trimming.
var columnAliases = map[string][]string{
	colGSTIN:         {"supplier gstin", "gstin", "gstin of supplier"},
	colLegalName:     {"supplier legal name", "legal name", "legal name of supplier"},
	colTradeName:     {"supplier trade name", "trade name", "trade/legal name"},
	colInvoiceNumber: {"invoice number", "invoice no", "invoice no.", "bill no"},
	colInvoiceDate:   {"invoice date", "bill date"},
	colBooksDate:     {"books date", "booking date", "entry date"},
	colTaxableValue:  {"total taxable value", "taxable value", "taxable amount"},
	colIGST:          {"total igst amount", "igst", "igst amount", "integrated tax"},
	colCGST:          {"total cgst amount", "cgst", "cgst amount", "central tax"},
	colSGST:          {"total sgst amount", "sgst", "sgst amount", "state/ut tax"},
	colInvoiceValue:  {"total invoice value", "invoice value", "invoice amount"},
}

// requiredColumns must all resolve for a file to be parseable.
var requiredColumns = []string{
	colGSTIN,
	colInvoiceNumber,
	colTaxableValue,
	colIGST,
	colCGST,
	colSGST,
}

// columnIndex maps canonical columns to their position in one file's
// header row. Missing optional columns have no entry.
type columnIndex map[string]int

// resolveColumns matches a header row against the known aliases and
// verifies every required column is present.
func resolveColumns(header []string, filename string) (columnIndex, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	idx := make(columnIndex)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, h := range normalized {
				if h == alias {
					idx[canonical] = i
					break
				}
			}
			if _, found := idx[canonical]; found {
				break
			}
		}
	}

	for _, required := range requiredColumns {
		if _, found := idx[required]; !found {
			return nil, pkgerrors.ParseError(pkgerrors.CodeMissingColumn, filename, 1, displayName(required), "", nil)
		}
	}
	return idx, nil
}

// displayName returns the primary header spelling of a canonical
// column, for error messages.
func displayName(canonical string) string {
	if aliases, ok := columnAliases[canonical]; ok && len(aliases) > 0 {
		return aliases[0]
	}
	return canonical
}

// ParseStats summarizes the quality of one parsed file.
type ParseStats struct {
	TotalRows     int                          `json:"total_rows"`
	ParsedRecords int                          `json:"parsed_records"`
	SkippedRows   int                          `json:"skipped_rows"`
	AmountErrors  int                          `json:"amount_errors"`
	DateErrors    int                          `json:"date_errors"`
	Errors        []*pkgerrors.ReconcilerError `json:"-"`
}
