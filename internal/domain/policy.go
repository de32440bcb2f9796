package domain

// MergeRule decides how an incoming feed value combines with the stored value
// for one column.
type MergeRule int

const (
	// Overwrite replaces the stored value with the incoming one
	// unconditionally. Reserved for fields where the writing feed is the
	// current authority (display names, progress text).
	Overwrite MergeRule = iota
	// FillFromIncoming takes the incoming value when it is non-null and keeps
	// the stored one otherwise. The feed that owns a field uses this rule so
	// it can correct its own earlier values without nulls clobbering data.
	FillFromIncoming
	// FillIfAbsent only sets a currently-null stored value. Once set, the
	// field is never replaced by a feed writing under this rule.
	FillIfAbsent
)

// BondColumns is the canonical non-key column set of the bonds table, in
// insert order.
var BondColumns = []string{
	"bond_nm", "stock_nm", "amount", "rating_cd",
	"progress_dt", "progress_nm",
	"board_dt", "shareholder_dt", "accept_dt", "committee_dt", "register_dt",
	"apply_date", "apply_cd", "list_date", "maturity_dt",
	"delist_dt", "delist_notes",
}

// IsBondColumn reports whether name is one of the canonical non-key columns.
func IsBondColumn(name string) bool {
	for _, c := range BondColumns {
		if c == name {
			return true
		}
	}
	return false
}

// MergePolicy declares, per feed, which columns that feed may write and under
// which rule. Columns a feed does not list are left untouched by it. The
// table replaces ad hoc per-statement SQL so the conflict policy can be
// audited and tested on its own.
//
// Note the deliberate asymmetry on list_date: the listed feed publishes a
// listing date but is only trusted to fill a missing one, while its rating
// and maturity values may correct earlier data.
var MergePolicy = map[Feed]map[string]MergeRule{
	FeedPreIssuance: {
		"bond_nm":     Overwrite,
		"stock_nm":    Overwrite,
		"amount":      Overwrite,
		"progress_dt": Overwrite,
		"progress_nm": Overwrite,

		"rating_cd":      FillFromIncoming,
		"board_dt":       FillFromIncoming,
		"shareholder_dt": FillFromIncoming,
		"accept_dt":      FillFromIncoming,
		"committee_dt":   FillFromIncoming,
		"register_dt":    FillFromIncoming,
		"apply_date":     FillFromIncoming,
		"apply_cd":       FillFromIncoming,
		"delist_dt":      FillFromIncoming,
		"delist_notes":   FillFromIncoming,

		"list_date":   FillIfAbsent,
		"maturity_dt": FillIfAbsent,
	},
	FeedListed: {
		"bond_nm":  FillIfAbsent,
		"stock_nm": FillIfAbsent,

		"rating_cd":   FillFromIncoming,
		"maturity_dt": FillFromIncoming,

		"list_date": FillIfAbsent,
	},
	FeedDelisted: {
		"apply_date":   FillIfAbsent,
		"list_date":    FillIfAbsent,
		"maturity_dt":  FillIfAbsent,
		"delist_dt":    FillIfAbsent,
		"delist_notes": FillIfAbsent,
	},
}

// PolicyColumns returns the columns a feed writes, in canonical order.
func PolicyColumns(feed Feed) []string {
	pol := MergePolicy[feed]
	cols := make([]string, 0, len(pol))
	for _, c := range BondColumns {
		if _, ok := pol[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}
