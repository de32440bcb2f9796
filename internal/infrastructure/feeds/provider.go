package feeds

import (
	"bytes"
	"context"
	"encoding/json"
)

// Provider fetches the three upstream bond lifecycle feeds. Each call returns
// the raw rows of one feed; a failed call is a feed-level error and is
// isolated by the orchestrator, never fatal to the run.
type Provider interface {
	PreIssuance(ctx context.Context) ([]Row, error)
	Listed(ctx context.Context) ([]Row, error)
	Delisted(ctx context.Context) ([]Row, error)
}

// Row is one raw feed row: an envelope id plus a bag of cell attributes.
type Row struct {
	ID   String `json:"id"`
	Cell Cell   `json:"cell"`
}

// Cell carries the union of the attributes the three endpoints emit. Absent
// fields decode to "".
type Cell struct {
	BondID       String `json:"bond_id"`
	BondNm       String `json:"bond_nm"`
	StockID      String `json:"stock_id"`
	StockNm      String `json:"stock_nm"`
	Amount       String `json:"amount"`
	RatingCd     String `json:"rating_cd"`
	ProgressDt   String `json:"progress_dt"`
	ProgressNm   String `json:"progress_nm"`
	ProgressFull String `json:"progress_full"`
	ApplyDate    String `json:"apply_date"`
	ApplyCd      String `json:"apply_cd"`
	ListDate     String `json:"list_date"`
	ListDt       String `json:"list_dt"`
	MaturityDt   String `json:"maturity_dt"`
	DelistDt     String `json:"delist_dt"`
	DelistNotes  String `json:"delist_notes"`
	IssueDt      String `json:"issue_dt"`
	FirstDt      String `json:"first_dt"`
	Price        String `json:"price"`
	Apply10      String `json:"apply10"`
}

// String is a feed cell value. The upstream emits the same attribute as a
// JSON string, a number or null depending on the endpoint, so everything is
// coerced to its text form on decode.
type String string

var nullLiteral = []byte("null")

func (s *String) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, nullLiteral) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = String(v)
		return nil
	}
	// Bare number: keep its literal text.
	*s = String(b)
	return nil
}
