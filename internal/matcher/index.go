package matcher

import (
	"sort"

	"gst-reconciliation-service/internal/models"
)

// identityKey addresses records by normalized identifier and invoice
// number. Records without a valid GSTIN never receive a key.
type identityKey struct {
	GSTIN         string
	InvoiceNumber string
}

// ledgerIndex holds one side of the reconciliation with lookup maps
// for identifier-keyed passes. All slices preserve input order so the
// pipeline stays deterministic.
type ledgerIndex struct {
	records []*models.LedgerRecord
	byKey   map[identityKey][]*models.LedgerRecord
	byGSTIN map[string][]*models.LedgerRecord
}

func newLedgerIndex(records []*models.LedgerRecord) *ledgerIndex {
	idx := &ledgerIndex{
		records: records,
		byKey:   make(map[identityKey][]*models.LedgerRecord),
		byGSTIN: make(map[string][]*models.LedgerRecord),
	}
	for _, rec := range records {
		if !rec.HasValidGSTIN() {
			continue
		}
		gstin := rec.NormalizedGSTIN()
		idx.byGSTIN[gstin] = append(idx.byGSTIN[gstin], rec)
		key := identityKey{GSTIN: gstin, InvoiceNumber: rec.NormalizedInvoiceNumber()}
		idx.byKey[key] = append(idx.byKey[key], rec)
	}
	return idx
}

// lookupKey returns records sharing the exact identifier and invoice
// number, in input order.
func (idx *ledgerIndex) lookupKey(key identityKey) []*models.LedgerRecord {
	return idx.byKey[key]
}

// lookupGSTIN returns records sharing the normalized identifier.
func (idx *ledgerIndex) lookupGSTIN(gstin string) []*models.LedgerRecord {
	return idx.byGSTIN[gstin]
}

// keys returns every identity key in deterministic order.
func (idx *ledgerIndex) keys() []identityKey {
	out := make([]identityKey, 0, len(idx.byKey))
	for k := range idx.byKey {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GSTIN != out[j].GSTIN {
			return out[i].GSTIN < out[j].GSTIN
		}
		return out[i].InvoiceNumber < out[j].InvoiceNumber
	})
	return out
}

// gstins returns every indexed identifier in deterministic order.
func (idx *ledgerIndex) gstins() []string {
	out := make([]string, 0, len(idx.byGSTIN))
	for g := range idx.byGSTIN {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
