package domain

// Allocation describes the underlying-share purchase needed to participate in
// a bond's preferential placement, derived from the pre-issuance feed's
// apply10 figure (shares required per 10 bond lots) and the current share
// price.
type Allocation struct {
	OneHandShares int64  `json:"one_hand_shares"`
	OneHandCost   string `json:"one_hand_cost"`
	BaseShares    int64  `json:"base_shares"`
	BaseCost      string `json:"base_cost"`
}

// Shown when the share price is not yet known.
const costUnknown = "需补充股价"

var twoHundred = NewDecimalFromInt(200)

// CalcAllocation computes the placement share counts and their cost.
//
// The Shenzhen board allocates per share, so the base count is apply10
// rounded up. On the Shanghai board a "one hand" is half the 10-lot count
// rounded up to the next lot of 100. Both default to one lot of 100 when
// apply10 is unknown.
func CalcAllocation(apply10, price *Decimal) Allocation {
	base := int64(100)
	oneHand := int64(100)

	if apply10 != nil && apply10.IsPositive() {
		if n, err := apply10.CeilInt64(); err == nil {
			base = n
		}
		if q, err := apply10.Div(twoHundred); err == nil {
			if n, err := q.CeilInt64(); err == nil {
				oneHand = n * 100
			}
		}
	}

	return Allocation{
		OneHandShares: oneHand,
		OneHandCost:   shareCost(oneHand, price),
		BaseShares:    base,
		BaseCost:      shareCost(base, price),
	}
}

func shareCost(shares int64, price *Decimal) string {
	if price == nil {
		return costUnknown
	}
	cost, err := NewDecimalFromInt(shares).Mul(*price)
	if err != nil {
		return costUnknown
	}
	rounded, err := cost.Round(2)
	if err != nil {
		return costUnknown
	}
	return rounded.String() + "元"
}
