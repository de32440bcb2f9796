package feeds

import (
	"github.com/jmliu/cb-tracker/internal/domain"
)

// The normalizers map one raw feed row onto the canonical record shape.
// Downstream components only ever see domain.BondRecord. A false return means
// the row is malformed for its feed and should be skipped, not that the batch
// failed.

// NormalizePreIssuance maps a pre-issuance feed row. The row must identify
// the underlying stock; the bond id may still be unknown.
func NormalizePreIssuance(row Row) (domain.BondRecord, bool) {
	cell := row.Cell

	stockID := string(cell.StockID)
	if stockID == "" {
		stockID = string(row.ID)
	}
	if stockID == "" {
		return domain.BondRecord{}, false
	}

	rec := domain.BondRecord{
		StockID:    stockID,
		BondID:     string(cell.BondID),
		BondName:   optString(cell.BondNm),
		StockName:  optString(cell.StockNm),
		Amount:     decimalString(cell.Amount),
		RatingCd:   optString(cell.RatingCd),
		ProgressDt: optString(cell.ProgressDt),
		ProgressNm: optString(String(domain.SanitizeHTML(string(cell.ProgressNm)))),
		ApplyDate:  optString(cell.ApplyDate),
		ApplyCd:    optString(cell.ApplyCd),
		ListDate:   optString(cell.ListDate),
	}
	rec.SetMilestones(domain.ParseTimeline(string(cell.ProgressFull)))
	return rec, true
}

// NormalizeListed maps a listed feed row. The listed feed names the listing
// date list_dt.
func NormalizeListed(row Row) (domain.BondRecord, bool) {
	cell := row.Cell

	stockID := string(cell.StockID)
	if stockID == "" {
		stockID = string(row.ID)
	}
	if stockID == "" || string(cell.BondID) == "" {
		return domain.BondRecord{}, false
	}

	return domain.BondRecord{
		StockID:    stockID,
		BondID:     string(cell.BondID),
		BondName:   optString(cell.BondNm),
		StockName:  optString(cell.StockNm),
		RatingCd:   optString(cell.RatingCd),
		ListDate:   optString(cell.ListDt),
		MaturityDt: optString(cell.MaturityDt),
	}, true
}

// NormalizeDelisted maps a delisted feed row. Delisted rows are keyed by bond
// id alone and only enrich rows that already exist; issue_dt and first_dt
// carry the subscription and listing dates under legacy names.
func NormalizeDelisted(row Row) (domain.BondRecord, bool) {
	cell := row.Cell

	if string(cell.BondID) == "" {
		return domain.BondRecord{}, false
	}

	return domain.BondRecord{
		StockID:     string(cell.StockID),
		BondID:      string(cell.BondID),
		ApplyDate:   optString(cell.IssueDt),
		ListDate:    optString(cell.FirstDt),
		MaturityDt:  optString(cell.MaturityDt),
		DelistDt:    optString(cell.DelistDt),
		DelistNotes: optString(cell.DelistNotes),
	}, true
}

// AllocationInput extracts the share price and apply10 figure from a
// pre-issuance row. Unparseable values come back nil.
func AllocationInput(row Row) (price, apply10 *domain.Decimal) {
	return optDecimal(row.Cell.Price), optDecimal(row.Cell.Apply10)
}

// optString treats "" and the upstream's "-" placeholder as absent.
func optString(s String) *string {
	v := string(s)
	if v == "" || v == "-" {
		return nil
	}
	return &v
}

// decimalString keeps the value only when it parses as a decimal.
func decimalString(s String) *string {
	d := optDecimal(s)
	if d == nil {
		return nil
	}
	v := d.String()
	return &v
}

func optDecimal(s String) *domain.Decimal {
	v := string(s)
	if v == "" || v == "-" {
		return nil
	}
	d, err := domain.NewDecimalFromString(v)
	if err != nil {
		return nil
	}
	return &d
}
