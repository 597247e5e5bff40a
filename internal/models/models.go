package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which ledger a record originated from.
type Source string

const (
	// SourceBooks marks records from the internal purchase ledger.
	SourceBooks Source = "Books"
	// SourceGSTR2A marks records from the government-supplied ledger.
	SourceGSTR2A Source = "GSTR-2A"
)

// String returns the string representation of Source
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is one of the two known ledgers
func (s Source) IsValid() bool {
	return s == SourceBooks || s == SourceGSTR2A
}

// ParseSource parses and validates a ledger source from string
func ParseSource(s string) (Source, error) {
	switch strings.TrimSpace(strings.ToUpper(s)) {
	case "BOOKS":
		return SourceBooks, nil
	case "GSTR-2A", "GSTR2A":
		return SourceGSTR2A, nil
	default:
		return "", fmt.Errorf("invalid source '%s': must be Books or GSTR-2A", s)
	}
}

// MatchStatus is the classification assigned to a record by the
// reconciliation pipeline. Every record carries exactly one status at
// any point in time; one-to-one statuses are terminal once assigned.
type MatchStatus string

const (
	// StatusUnprocessed is the initial state before any pipeline stage runs.
	StatusUnprocessed MatchStatus = "Unprocessed"

	// StatusExactMatch: identical GSTIN and invoice number, all amounts
	// equal within a near-zero epsilon, zero date difference.
	StatusExactMatch MatchStatus = "Exact Match"

	// StatusPartialMatch: accepted identity with amounts and dates
	// within the configured tolerances.
	StatusPartialMatch MatchStatus = "Partial Match"

	// StatusGroupMatch: one invoice on one side corresponds to several
	// invoices on the other side under the same (GSTIN, invoice) key.
	StatusGroupMatch MatchStatus = "Group Match"

	// StatusTaxBasedGroupMatch: records grouped by aggregate tax amounts
	// per supplier when invoice numbers disagree.
	StatusTaxBasedGroupMatch MatchStatus = "Tax-Based Group Match"

	// StatusDataEntrySwapMatch: amount columns transposed between the
	// two sides (e.g. taxable value recorded in the IGST column).
	StatusDataEntrySwapMatch MatchStatus = "Data Entry Swap Match"

	// StatusBooksOnly: no counterpart found in GSTR-2A.
	StatusBooksOnly MatchStatus = "Books Only"

	// StatusGSTR2AOnly: no counterpart found in Books.
	StatusGSTR2AOnly MatchStatus = "GSTR-2A Only"
)

// String returns the string representation of MatchStatus
func (ms MatchStatus) String() string {
	return string(ms)
}

// IsOneToOne reports whether the status links exactly one Books record
// with exactly one GSTR-2A record. One-to-one statuses are frozen and
// never reassigned by later passes.
func (ms MatchStatus) IsOneToOne() bool {
	return ms == StatusExactMatch || ms == StatusPartialMatch || ms == StatusDataEntrySwapMatch
}

// IsGrouped reports whether the status links a cluster of records
// sharing a group ID.
func (ms MatchStatus) IsGrouped() bool {
	return ms == StatusGroupMatch || ms == StatusTaxBasedGroupMatch
}

// IsUnmatched reports whether the record has no counterpart on the
// other side.
func (ms MatchStatus) IsUnmatched() bool {
	return ms == StatusBooksOnly || ms == StatusGSTR2AOnly
}

// gstinPattern captures the 15-character GSTIN structure: a two-digit
// state code, a PAN-like body (5 letters, 4 digits, 1 letter), and the
// entity/check tail.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z][A-Z][0-9A-Z]$`)

// NormalizeGSTIN trims whitespace and uppercases a supplier identifier.
// Normalization never rejects a value; malformed identifiers are kept
// as-is for output and filtered by IsValidGSTIN where validity matters.
func NormalizeGSTIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsValidGSTIN checks the normalized identifier against the expected
// 15-character structure. Invalid identifiers score zero against any
// non-identical identifier and are excluded from identifier-keyed
// grouping.
func IsValidGSTIN(s string) bool {
	return gstinPattern.MatchString(NormalizeGSTIN(s))
}

// NormalizeName trims and collapses internal whitespace. A name that
// normalizes to the empty string is treated as absent, never as a
// zero-length match target.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LedgerRecord is one invoice line from either ledger. Records are
// immutable once ingested; the pipeline only appends annotations.
type LedgerRecord struct {
	ID            int             `json:"id"`
	Source        Source          `json:"source"`
	GSTIN         string          `json:"gstin"`
	LegalName     string          `json:"legalName"`
	TradeName     string          `json:"tradeName"`
	InvoiceNumber string          `json:"invoiceNumber"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	BooksDate     time.Time       `json:"booksDate"`
	TaxableValue  decimal.Decimal `json:"taxableValue"`
	IGST          decimal.Decimal `json:"igst"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	InvoiceValue  decimal.Decimal `json:"invoiceValue"`

	// AmountsValid is false when one or more monetary fields failed to
	// parse; such records are excluded from numeric comparisons but are
	// never dropped.
	AmountsValid bool `json:"amountsValid"`

	// InvoiceDateValid is false when the invoice date failed to parse.
	InvoiceDateValid bool `json:"invoiceDateValid"`
}

// TotalTax returns the summed IGST, CGST and SGST amounts.
func (r *LedgerRecord) TotalTax() decimal.Decimal {
	return r.IGST.Add(r.CGST).Add(r.SGST)
}

// NormalizedGSTIN returns the trimmed, uppercased identifier.
func (r *LedgerRecord) NormalizedGSTIN() string {
	return NormalizeGSTIN(r.GSTIN)
}

// HasValidGSTIN reports whether the identifier matches the 15-character
// structure after normalization.
func (r *LedgerRecord) HasValidGSTIN() bool {
	return IsValidGSTIN(r.GSTIN)
}

// HasLegalName reports whether the legal name is present after
// normalization.
func (r *LedgerRecord) HasLegalName() bool {
	return NormalizeName(r.LegalName) != ""
}

// HasTradeName reports whether the trade name is present after
// normalization.
func (r *LedgerRecord) HasTradeName() bool {
	return NormalizeName(r.TradeName) != ""
}

// NormalizedInvoiceNumber returns the invoice number trimmed of
// surrounding whitespace.
func (r *LedgerRecord) NormalizedInvoiceNumber() string {
	return strings.TrimSpace(r.InvoiceNumber)
}

// String returns a string representation of the LedgerRecord
func (r *LedgerRecord) String() string {
	return fmt.Sprintf("LedgerRecord{Source: %s, GSTIN: %s, Invoice: %s, TotalTax: %s}",
		r.Source, r.GSTIN, r.InvoiceNumber, r.TotalTax().String())
}

// Validate performs basic validation on the LedgerRecord
func (r *LedgerRecord) Validate() error {
	if !r.Source.IsValid() {
		return fmt.Errorf("invalid record source: %s", r.Source)
	}

	if strings.TrimSpace(r.GSTIN) == "" && strings.TrimSpace(r.InvoiceNumber) == "" {
		return fmt.Errorf("record must carry a supplier GSTIN or an invoice number")
	}

	return nil
}

// MatchAnnotation is the per-record output of the pipeline. Annotations
// are mutated in place by successive stages and never rolled back.
type MatchAnnotation struct {
	Status  MatchStatus `json:"status"`
	GroupID string      `json:"groupId,omitempty"`
	MatchID string      `json:"matchId,omitempty"`

	GSTINScore     float64 `json:"gstinScore"`
	LegalNameScore float64 `json:"legalNameScore"`
	TradeNameScore float64 `json:"tradeNameScore"`

	// Diffs are Books minus GSTR-2A, defined only when HasCounterpart.
	IGSTDiff decimal.Decimal `json:"igstDiff"`
	CGSTDiff decimal.Decimal `json:"cgstDiff"`
	SGSTDiff decimal.Decimal `json:"sgstDiff"`
	DateDiff int             `json:"dateDiff"`

	HasCounterpart bool `json:"hasCounterpart"`

	// Frozen marks records carrying a one-to-one status; later passes
	// must never reopen or reassign a frozen record.
	Frozen bool `json:"-"`
}

// NewAnnotation returns an annotation in the initial Unprocessed state.
func NewAnnotation() *MatchAnnotation {
	return &MatchAnnotation{Status: StatusUnprocessed}
}

// TotalTaxDiff returns the signed sum of the per-tax-type diffs. Zero
// when no counterpart exists.
func (a *MatchAnnotation) TotalTaxDiff() decimal.Decimal {
	return a.IGSTDiff.Add(a.CGSTDiff).Add(a.SGSTDiff)
}

// Clone returns a deep copy of the annotation.
func (a *MatchAnnotation) Clone() *MatchAnnotation {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// ParseDecimalFromString parses a monetary value, tolerating currency
// symbols and thousand separators commonly present in ledger exports.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using the
// formats commonly found in ledger exports.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
		"2006/01/02",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"Jan 2, 2006",
		"02-Jan-2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DaysBetween returns the signed difference a minus b in whole calendar
// days, ignoring time-of-day components.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ad.Sub(bd).Hours() / 24)
}
