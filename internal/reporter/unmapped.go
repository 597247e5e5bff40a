package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"gst-reconciliation-service/internal/models"
	pkgerrors "gst-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// UnmappedSupplier is one supplier that appears in the GSTR-2A ledger
// with a valid GSTIN but never in the Books ledger. These are
// candidate missed input credits or unrecorded purchases.
type UnmappedSupplier struct {
	GSTIN        string          `json:"gstin"`
	LegalName    string          `json:"legal_name"`
	TradeName    string          `json:"trade_name"`
	InvoiceCount int             `json:"invoice_count"`
	TotalIGST    decimal.Decimal `json:"total_igst"`
	TotalCGST    decimal.Decimal `json:"total_cgst"`
	TotalSGST    decimal.Decimal `json:"total_sgst"`
}

// TotalTax returns the summed tax exposure of the supplier.
func (u *UnmappedSupplier) TotalTax() decimal.Decimal {
	return u.TotalIGST.Add(u.TotalCGST).Add(u.TotalSGST)
}

// BuildUnmappedReport collects GSTR-2A suppliers whose GSTIN never
// occurs on the Books side. Names come from the first GSTR-2A record
// carrying one. Output is sorted by GSTIN.
func BuildUnmappedReport(records []*models.LedgerRecord) []*UnmappedSupplier {
	booksGSTINs := make(map[string]bool)
	for _, rec := range records {
		if rec.Source == models.SourceBooks && rec.HasValidGSTIN() {
			booksGSTINs[rec.NormalizedGSTIN()] = true
		}
	}

	bySupplier := make(map[string]*UnmappedSupplier)
	for _, rec := range records {
		if rec.Source != models.SourceGSTR2A || !rec.HasValidGSTIN() {
			continue
		}
		gstin := rec.NormalizedGSTIN()
		if booksGSTINs[gstin] {
			continue
		}

		supplier := bySupplier[gstin]
		if supplier == nil {
			supplier = &UnmappedSupplier{GSTIN: gstin}
			bySupplier[gstin] = supplier
		}
		if supplier.LegalName == "" {
			supplier.LegalName = rec.LegalName
		}
		if supplier.TradeName == "" {
			supplier.TradeName = rec.TradeName
		}
		supplier.InvoiceCount++
		supplier.TotalIGST = supplier.TotalIGST.Add(rec.IGST)
		supplier.TotalCGST = supplier.TotalCGST.Add(rec.CGST)
		supplier.TotalSGST = supplier.TotalSGST.Add(rec.SGST)
	}

	out := make([]*UnmappedSupplier, 0, len(bySupplier))
	for _, supplier := range bySupplier {
		out = append(out, supplier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GSTIN < out[j].GSTIN })
	return out
}

var unmappedHeader = []string{
	"Supplier GSTIN",
	"Supplier Legal Name",
	"Supplier Trade Name",
	"Invoice Count",
	"Total IGST Amount",
	"Total CGST Amount",
	"Total SGST Amount",
	"Total Tax Amount",
}

// WriteUnmappedCSV renders the unmapped supplier report as CSV.
func WriteUnmappedCSV(w io.Writer, suppliers []*UnmappedSupplier) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(unmappedHeader); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write unmapped report header")
	}

	for _, s := range suppliers {
		record := []string{
			s.GSTIN,
			s.LegalName,
			s.TradeName,
			fmt.Sprintf("%d", s.InvoiceCount),
			s.TotalIGST.StringFixed(2),
			s.TotalCGST.StringFixed(2),
			s.TotalSGST.StringFixed(2),
			s.TotalTax().StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to write unmapped report row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CategoryFile, pkgerrors.CodeUnexpectedError, "failed to flush unmapped report")
	}
	return nil
}
