package matcher

import (
	"fmt"
	"math"
	"sort"

	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/similarity"
	"gst-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// amountEpsilon bounds the rounding noise tolerated when two amounts
// are treated as equal.
var amountEpsilon = decimal.NewFromFloat(0.01)

// eligibility filters which annotations a pass may touch.
type eligibility func(*models.MatchAnnotation) bool

func unprocessedOnly(a *models.MatchAnnotation) bool {
	return a.Status == models.StatusUnprocessed
}

func oneSidedOnly(a *models.MatchAnnotation) bool {
	return a.Status == models.StatusBooksOnly || a.Status == models.StatusGSTR2AOnly
}

// Engine runs the classification pipeline over a combined ledger. It
// owns one annotation per record; input records are never mutated.
type Engine struct {
	cfg    *ToleranceConfig
	scorer *similarity.Scorer
	log    logger.Logger

	records []*models.LedgerRecord
	anns    map[int]*models.MatchAnnotation

	books  *ledgerIndex
	gstr2a *ledgerIndex

	matchSeq int
	groupSeq int
}

// NewEngine builds an engine over the given records. A nil config
// falls back to defaults. Records keep their input order throughout,
// which makes repeated runs over identical input deterministic.
// Record IDs must be unique; a record whose ID collides with an
// earlier one is renumbered past the highest input ID, since aliased
// IDs would make two records share one annotation.
func NewEngine(records []*models.LedgerRecord, cfg *ToleranceConfig) *Engine {
	if cfg == nil {
		cfg = DefaultToleranceConfig()
	}

	e := &Engine{
		cfg:     cfg,
		scorer:  similarity.NewScorer(nil, cfg.CaseSensitiveNames),
		log:     logger.GetGlobalLogger().WithComponent("matcher"),
		records: records,
		anns:    make(map[int]*models.MatchAnnotation, len(records)),
	}

	maxID := 0
	for _, rec := range records {
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}

	var books, gstr2a []*models.LedgerRecord
	for _, rec := range records {
		if _, taken := e.anns[rec.ID]; taken {
			maxID++
			rec.ID = maxID
		}
		e.anns[rec.ID] = models.NewAnnotation()
		switch rec.Source {
		case models.SourceBooks:
			books = append(books, rec)
		case models.SourceGSTR2A:
			gstr2a = append(gstr2a, rec)
		}
	}
	e.books = newLedgerIndex(books)
	e.gstr2a = newLedgerIndex(gstr2a)

	return e
}

// Config returns the tolerance configuration in use.
func (e *Engine) Config() *ToleranceConfig {
	return e.cfg
}

// Records returns the combined ledger in input order.
func (e *Engine) Records() []*models.LedgerRecord {
	return e.records
}

// Annotation returns the annotation for a record ID, or nil when the
// ID is unknown.
func (e *Engine) Annotation(id int) *models.MatchAnnotation {
	return e.anns[id]
}

// Run executes the full pipeline. Each pass only consumes records the
// earlier passes left untouched, so the stage order is also a
// precedence order.
func (e *Engine) Run() {
	e.log.WithFields(logger.Fields{
		"books_records":  len(e.books.records),
		"gstr2a_records": len(e.gstr2a.records),
	}).Info("Starting reconciliation pipeline")

	exact := e.runExactPass()
	partial := e.runPartialPass()
	groups := e.runGroupPass(unprocessedOnly)
	taxGroups := e.runTaxGroupPass(unprocessedOnly)
	swaps := e.runSwapPass()
	booksOnly, gstr2aOnly := e.finalizeRemaining()

	e.log.WithFields(logger.Fields{
		"exact":       exact,
		"partial":     partial,
		"groups":      groups,
		"tax_groups":  taxGroups,
		"swaps":       swaps,
		"books_only":  booksOnly,
		"gstr2a_only": gstr2aOnly,
	}).Info("Reconciliation pipeline complete")
}

func (e *Engine) nextMatchID() string {
	e.matchSeq++
	return fmt.Sprintf("M-%04d", e.matchSeq)
}

func (e *Engine) nextGroupID() string {
	e.groupSeq++
	return fmt.Sprintf("G-%04d", e.groupSeq)
}

func amountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(amountEpsilon)
}

// setOneToOne records a frozen pairing between one books record and
// one GSTR-2A record. Both annotations carry the same match ID, the
// same similarity scores and the same signed differences, always
// computed Books minus GSTR-2A.
func (e *Engine) setOneToOne(status models.MatchStatus, b, g *models.LedgerRecord, sc similarity.Scores) {
	matchID := e.nextMatchID()
	dateDiff := 0
	if b.InvoiceDateValid && g.InvoiceDateValid {
		dateDiff = models.DaysBetween(b.InvoiceDate, g.InvoiceDate)
	}

	for _, rec := range []*models.LedgerRecord{b, g} {
		ann := e.anns[rec.ID]
		ann.Status = status
		ann.MatchID = matchID
		ann.GSTINScore = sc.GSTIN
		ann.LegalNameScore = sc.LegalName
		ann.TradeNameScore = sc.TradeName
		ann.IGSTDiff = b.IGST.Sub(g.IGST)
		ann.CGSTDiff = b.CGST.Sub(g.CGST)
		ann.SGSTDiff = b.SGST.Sub(g.SGST)
		ann.DateDiff = dateDiff
		ann.HasCounterpart = true
		ann.Frozen = true
	}
}

// runExactPass pairs records that agree on identifier, invoice number,
// every amount column and invoice date. First eligible counterpart in
// input order wins.
func (e *Engine) runExactPass() int {
	matched := 0
	for _, b := range e.books.records {
		if !unprocessedOnly(e.anns[b.ID]) || !b.HasValidGSTIN() {
			continue
		}
		key := identityKey{GSTIN: b.NormalizedGSTIN(), InvoiceNumber: b.NormalizedInvoiceNumber()}
		for _, g := range e.gstr2a.lookupKey(key) {
			if !unprocessedOnly(e.anns[g.ID]) {
				continue
			}
			if !e.isExactCounterpart(b, g) {
				continue
			}
			e.setOneToOne(models.StatusExactMatch, b, g, e.scorer.Score(b, g))
			matched++
			break
		}
	}
	return matched
}

func (e *Engine) isExactCounterpart(b, g *models.LedgerRecord) bool {
	if !b.AmountsValid || !g.AmountsValid {
		return false
	}
	if !b.InvoiceDateValid || !g.InvoiceDateValid {
		return false
	}
	if models.DaysBetween(b.InvoiceDate, g.InvoiceDate) != 0 {
		return false
	}
	return amountsEqual(b.TaxableValue, g.TaxableValue) &&
		amountsEqual(b.IGST, g.IGST) &&
		amountsEqual(b.CGST, g.CGST) &&
		amountsEqual(b.SGST, g.SGST) &&
		amountsEqual(b.InvoiceValue, g.InvoiceValue)
}

// partialCandidate holds one admissible counterpart with the features
// the ranking needs.
type partialCandidate struct {
	rec        *models.LedgerRecord
	scores     similarity.Scores
	sameKey    bool
	absTaxDiff decimal.Decimal
	absDays    int
	order      int
}

// runPartialPass pairs remaining records whose supplier identity is
// accepted and whose totals and dates sit within tolerance. Invoice
// numbers may differ; identity comes from the acceptance rule alone.
func (e *Engine) runPartialPass() int {
	matched := 0
	for _, b := range e.books.records {
		if !unprocessedOnly(e.anns[b.ID]) || !b.AmountsValid {
			continue
		}

		var candidates []partialCandidate
		for order, g := range e.gstr2a.records {
			if !unprocessedOnly(e.anns[g.ID]) || !g.AmountsValid {
				continue
			}

			taxDiff := b.TotalTax().Sub(g.TotalTax())
			if !e.cfg.WithinTaxTolerance(taxDiff) {
				continue
			}

			if !b.InvoiceDateValid || !g.InvoiceDateValid {
				continue
			}
			days := models.DaysBetween(b.InvoiceDate, g.InvoiceDate)
			if !e.cfg.WithinDateTolerance(days) {
				continue
			}

			// A transposed-column counterpart belongs to the swap pass,
			// not here. Without this guard a CGST/SGST transposition,
			// which keeps the total tax unchanged, would read as a
			// partial match.
			if isSwapCandidate(b, g) {
				continue
			}

			sc := e.scorer.Score(b, g)
			if !e.cfg.Accepts(sc) {
				continue
			}

			sameKey := b.HasValidGSTIN() && g.HasValidGSTIN() &&
				b.NormalizedGSTIN() == g.NormalizedGSTIN() &&
				b.NormalizedInvoiceNumber() == g.NormalizedInvoiceNumber()
			absDays := days
			if absDays < 0 {
				absDays = -absDays
			}
			candidates = append(candidates, partialCandidate{
				rec:        g,
				scores:     sc,
				sameKey:    sameKey,
				absTaxDiff: taxDiff.Abs(),
				absDays:    absDays,
				order:      order,
			})
		}

		if len(candidates) == 0 {
			continue
		}
		best := e.rankPartialCandidates(candidates)
		e.setOneToOne(models.StatusPartialMatch, b, best.rec, best.scores)
		matched++
	}
	return matched
}

// rankPartialCandidates orders candidates by identity key agreement,
// then smallest tax difference, smallest date difference, highest
// preferred name score, and finally input order as the stable
// tie-break.
func (e *Engine) rankPartialCandidates(candidates []partialCandidate) partialCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.sameKey != b.sameKey {
			return a.sameKey
		}
		if !a.absTaxDiff.Equal(b.absTaxDiff) {
			return a.absTaxDiff.LessThan(b.absTaxDiff)
		}
		if a.absDays != b.absDays {
			return a.absDays < b.absDays
		}
		an := e.cfg.PreferredNameScore(a.scores)
		bn := e.cfg.PreferredNameScore(b.scores)
		if an != bn {
			return an > bn
		}
		return a.order < b.order
	})
	return candidates[0]
}

// setGroup stamps a shared group ID onto every member. The stored
// differences are the group aggregates, identical on every member, so
// any one row of the group reads as the whole group's delta.
func (e *Engine) setGroup(status models.MatchStatus, bs, gs []*models.LedgerRecord, sc similarity.Scores) {
	groupID := e.nextGroupID()

	var bIGST, bCGST, bSGST, gIGST, gCGST, gSGST decimal.Decimal
	for _, r := range bs {
		bIGST = bIGST.Add(r.IGST)
		bCGST = bCGST.Add(r.CGST)
		bSGST = bSGST.Add(r.SGST)
	}
	for _, r := range gs {
		gIGST = gIGST.Add(r.IGST)
		gCGST = gCGST.Add(r.CGST)
		gSGST = gSGST.Add(r.SGST)
	}

	for _, rec := range append(append([]*models.LedgerRecord{}, bs...), gs...) {
		ann := e.anns[rec.ID]
		ann.Status = status
		ann.GroupID = groupID
		ann.MatchID = ""
		ann.GSTINScore = sc.GSTIN
		ann.LegalNameScore = sc.LegalName
		ann.TradeNameScore = sc.TradeName
		ann.IGSTDiff = bIGST.Sub(gIGST)
		ann.CGSTDiff = bCGST.Sub(gCGST)
		ann.SGSTDiff = bSGST.Sub(gSGST)
		ann.DateDiff = 0
		ann.HasCounterpart = true
		ann.Frozen = false
	}
}

// runGroupPass matches invoice splits: one record on one side against
// several on the other under the same (GSTIN, invoice number) key,
// with aggregate total tax within the tax amount tolerance. Dates are
// ignored; the shared identifier already establishes identity.
func (e *Engine) runGroupPass(elig eligibility) int {
	groups := 0
	for _, key := range e.books.keys() {
		bs := e.eligibleRecords(e.books.lookupKey(key), elig)
		if len(bs) == 0 {
			continue
		}
		gs := e.eligibleRecords(e.gstr2a.lookupKey(key), elig)
		if len(gs) == 0 {
			continue
		}

		// A group is a split: exactly one record on one side, several
		// on the other. Lone pairs and many-to-many keys fall through
		// to the later passes.
		if len(bs) != 1 && len(gs) != 1 {
			continue
		}
		if len(bs) == 1 && len(gs) == 1 {
			continue
		}

		diff := sumTotalTax(bs).Sub(sumTotalTax(gs))
		if !e.cfg.WithinTaxTolerance(diff) {
			continue
		}

		e.setGroup(models.StatusGroupMatch, bs, gs, e.scorer.Score(bs[0], gs[0]))
		groups++
	}
	return groups
}

// runTaxGroupPass matches what the invoice-keyed pass could not: all
// eligible records of one supplier, regardless of invoice number, when
// the per-supplier aggregate tax agrees within the group tax
// tolerance.
func (e *Engine) runTaxGroupPass(elig eligibility) int {
	groups := 0
	for _, gstin := range e.books.gstins() {
		bs := e.eligibleRecords(e.books.lookupGSTIN(gstin), elig)
		if len(bs) == 0 {
			continue
		}
		gs := e.eligibleRecords(e.gstr2a.lookupGSTIN(gstin), elig)
		if len(gs) == 0 {
			continue
		}

		diff := sumTotalTax(bs).Sub(sumTotalTax(gs))
		if !e.cfg.WithinGroupTaxTolerance(diff) {
			continue
		}

		if len(bs) == 1 && len(gs) == 1 && isSwapCandidate(bs[0], gs[0]) {
			continue
		}

		e.setGroup(models.StatusTaxBasedGroupMatch, bs, gs, e.scorer.Score(bs[0], gs[0]))
		groups++
	}
	return groups
}

func (e *Engine) eligibleRecords(recs []*models.LedgerRecord, elig eligibility) []*models.LedgerRecord {
	var out []*models.LedgerRecord
	for _, r := range recs {
		if r.AmountsValid && elig(e.anns[r.ID]) {
			out = append(out, r)
		}
	}
	return out
}

func sumTotalTax(recs []*models.LedgerRecord) decimal.Decimal {
	var sum decimal.Decimal
	for _, r := range recs {
		sum = sum.Add(r.TotalTax())
	}
	return sum
}

// Amount column positions used by swap detection.
const (
	colTaxable = iota
	colIGST
	colCGST
	colSGST
)

// swapPermutations enumerates the recognized column transpositions.
// Each entry swaps one column pair; all other amount columns must
// agree unchanged.
var swapPermutations = [][2]int{
	{colTaxable, colIGST},
	{colTaxable, colCGST},
	{colTaxable, colSGST},
	{colCGST, colSGST},
}

func amountVector(r *models.LedgerRecord) [4]decimal.Decimal {
	return [4]decimal.Decimal{r.TaxableValue, r.IGST, r.CGST, r.SGST}
}

// runSwapPass pairs remaining records whose amounts agree only after
// transposing one pair of columns. Identity still has to be accepted
// and the invoice numbers must agree; the swap explains the amounts,
// not the identity.
func (e *Engine) runSwapPass() int {
	matched := 0
	for _, b := range e.books.records {
		if !unprocessedOnly(e.anns[b.ID]) || !b.AmountsValid {
			continue
		}
		for _, g := range e.gstr2a.records {
			if !unprocessedOnly(e.anns[g.ID]) || !g.AmountsValid {
				continue
			}
			if !isSwapCandidate(b, g) {
				continue
			}
			sc := e.scorer.Score(b, g)
			if !e.cfg.Accepts(sc) {
				continue
			}
			e.setOneToOne(models.StatusDataEntrySwapMatch, b, g, sc)
			matched++
			break
		}
	}
	return matched
}

// isSwapCandidate reports whether the pair meets the swap pass's own
// criteria: same invoice number with transposed amount columns.
func isSwapCandidate(b, g *models.LedgerRecord) bool {
	return b.NormalizedInvoiceNumber() != "" &&
		b.NormalizedInvoiceNumber() == g.NormalizedInvoiceNumber() &&
		hasSwappedAmounts(b, g)
}

// hasSwappedAmounts reports whether g equals b after exactly one
// recognized column transposition. Straight equality is not a swap;
// that pair belongs to the exact pass.
func hasSwappedAmounts(b, g *models.LedgerRecord) bool {
	bv, gv := amountVector(b), amountVector(g)

	for _, perm := range swapPermutations {
		i, j := perm[0], perm[1]
		if !amountsEqual(bv[i], gv[j]) || !amountsEqual(bv[j], gv[i]) {
			continue
		}
		// The transposed pair must actually differ.
		if amountsEqual(bv[i], bv[j]) {
			continue
		}
		untouched := true
		for col := range bv {
			if col == i || col == j {
				continue
			}
			if !amountsEqual(bv[col], gv[col]) {
				untouched = false
				break
			}
		}
		if untouched {
			return true
		}
	}
	return false
}

// finalizeRemaining stamps the one-sided statuses on everything the
// matching passes left unprocessed. One-sided records stay unfrozen so
// enhanced matching may revisit them.
func (e *Engine) finalizeRemaining() (booksOnly, gstr2aOnly int) {
	for _, b := range e.books.records {
		if ann := e.anns[b.ID]; ann.Status == models.StatusUnprocessed {
			ann.Status = models.StatusBooksOnly
			booksOnly++
		}
	}
	for _, g := range e.gstr2a.records {
		if ann := e.anns[g.ID]; ann.Status == models.StatusUnprocessed {
			ann.Status = models.StatusGSTR2AOnly
			gstr2aOnly++
		}
	}
	return booksOnly, gstr2aOnly
}

// StatusCounts tallies the pipeline outcome. One-to-one statuses count
// records; grouped statuses count distinct groups.
type StatusCounts struct {
	Exact         int
	Partial       int
	Groups        int
	TaxGroups     int
	DataEntrySwap int
	BooksOnly     int
	GSTR2AOnly    int
	Total         int
}

// Counts tallies current annotations. Safe to call at any point; the
// result reflects whatever the passes have assigned so far.
func (e *Engine) Counts() StatusCounts {
	var c StatusCounts
	groupIDs := make(map[string]models.MatchStatus)
	for _, rec := range e.records {
		ann := e.anns[rec.ID]
		switch ann.Status {
		case models.StatusExactMatch:
			c.Exact++
		case models.StatusPartialMatch:
			c.Partial++
		case models.StatusDataEntrySwapMatch:
			c.DataEntrySwap++
		case models.StatusGroupMatch, models.StatusTaxBasedGroupMatch:
			groupIDs[ann.GroupID] = ann.Status
		case models.StatusBooksOnly:
			c.BooksOnly++
		case models.StatusGSTR2AOnly:
			c.GSTR2AOnly++
		}
	}
	for _, status := range groupIDs {
		if status == models.StatusGroupMatch {
			c.Groups++
		} else {
			c.TaxGroups++
		}
	}
	c.Total = len(e.records)
	return c
}

// estimateRatio is shared with the enhanced matching planner: the
// fraction of one-sided records a candidate pattern could plausibly
// consume, clamped to [0, 1].
func estimateRatio(candidates, pool int) float64 {
	if pool == 0 {
		return 0
	}
	return math.Min(1, float64(candidates)/float64(pool))
}
