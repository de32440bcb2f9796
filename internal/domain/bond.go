package domain

// Feed identifies which upstream source produced a record. The three feeds
// refresh independently and disagree in authority per field, which is why the
// merge policy is declared per feed (see policy.go).
type Feed string

const (
	FeedPreIssuance Feed = "pre_issuance"
	FeedListed      Feed = "listed"
	FeedDelisted    Feed = "delisted"
)

// BondRecord is the canonical reconciled view of one convertible bond.
//
// Identity is the composite (StockID, BondID) pair. StockID is the underlying
// equity's code and is known from the first sighting onwards; BondID is the
// bond's own code and stays "" until a feed that knows it shows up. All other
// attributes are optional: nil means the value has never been observed.
type BondRecord struct {
	StockID string `json:"stock_id"`
	BondID  string `json:"bond_id"`

	BondName  *string `json:"bond_nm,omitempty"`
	StockName *string `json:"stock_nm,omitempty"`
	// Face amount in units of 100M CNY, kept as its decimal text form.
	Amount   *string `json:"amount,omitempty"`
	RatingCd *string `json:"rating_cd,omitempty"`

	ProgressDt *string `json:"progress_dt,omitempty"`
	ProgressNm *string `json:"progress_nm,omitempty"`

	// Milestone dates derived from the progress timeline text.
	BoardDt       *string `json:"board_dt,omitempty"`
	ShareholderDt *string `json:"shareholder_dt,omitempty"`
	AcceptDt      *string `json:"accept_dt,omitempty"`
	CommitteeDt   *string `json:"committee_dt,omitempty"`
	RegisterDt    *string `json:"register_dt,omitempty"`

	ApplyDate   *string `json:"apply_date,omitempty"`
	ApplyCd     *string `json:"apply_cd,omitempty"`
	ListDate    *string `json:"list_date,omitempty"`
	MaturityDt  *string `json:"maturity_dt,omitempty"`
	DelistDt    *string `json:"delist_dt,omitempty"`
	DelistNotes *string `json:"delist_notes,omitempty"`
}

// SetMilestones copies the parsed timeline dates onto the record.
func (r *BondRecord) SetMilestones(m MilestoneDates) {
	r.BoardDt = m.BoardDt
	r.ShareholderDt = m.ShareholderDt
	r.AcceptDt = m.AcceptDt
	r.CommitteeDt = m.CommitteeDt
	r.RegisterDt = m.RegisterDt
}

// ColumnValue returns the record's value for one of the canonical non-key
// columns. A nil return maps to SQL NULL.
func (r *BondRecord) ColumnValue(col string) *string {
	switch col {
	case "bond_nm":
		return r.BondName
	case "stock_nm":
		return r.StockName
	case "amount":
		return r.Amount
	case "rating_cd":
		return r.RatingCd
	case "progress_dt":
		return r.ProgressDt
	case "progress_nm":
		return r.ProgressNm
	case "board_dt":
		return r.BoardDt
	case "shareholder_dt":
		return r.ShareholderDt
	case "accept_dt":
		return r.AcceptDt
	case "committee_dt":
		return r.CommitteeDt
	case "register_dt":
		return r.RegisterDt
	case "apply_date":
		return r.ApplyDate
	case "apply_cd":
		return r.ApplyCd
	case "list_date":
		return r.ListDate
	case "maturity_dt":
		return r.MaturityDt
	case "delist_dt":
		return r.DelistDt
	case "delist_notes":
		return r.DelistNotes
	}
	return nil
}

// SetColumnValue sets the record field backing one of the canonical non-key
// columns. Unknown columns are ignored.
func (r *BondRecord) SetColumnValue(col string, v *string) {
	switch col {
	case "bond_nm":
		r.BondName = v
	case "stock_nm":
		r.StockName = v
	case "amount":
		r.Amount = v
	case "rating_cd":
		r.RatingCd = v
	case "progress_dt":
		r.ProgressDt = v
	case "progress_nm":
		r.ProgressNm = v
	case "board_dt":
		r.BoardDt = v
	case "shareholder_dt":
		r.ShareholderDt = v
	case "accept_dt":
		r.AcceptDt = v
	case "committee_dt":
		r.CommitteeDt = v
	case "register_dt":
		r.RegisterDt = v
	case "apply_date":
		r.ApplyDate = v
	case "apply_cd":
		r.ApplyCd = v
	case "list_date":
		r.ListDate = v
	case "maturity_dt":
		r.MaturityDt = v
	case "delist_dt":
		r.DelistDt = v
	case "delist_notes":
		r.DelistNotes = v
	}
}
