package domain

import "time"

// PairPayoutCents is the collateral reserved per minted YES/NO pair and the
// payout per winning share at settlement.
const PairPayoutCents int64 = 100

// MinPriceCents and MaxPriceCents bound the valid limit-price tick range.
// Prices are integer cents in (0, 100) exclusive; a price of 0 or 100 would
// be a riskless order and is rejected.
const (
	MinPriceCents int64 = 1
	MaxPriceCents int64 = 99
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusFrozen  MarketStatus = "frozen"
	MarketStatusSettled MarketStatus = "settled"
)

// Outcome is one leg of the binary outcome pair.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Valid reports whether o is one of the two defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Market is a binary-outcome market. OutstandingPairs counts minted,
// not-yet-burned YES/NO pairs; LockedCollateralCents is the reserve backing
// them at exactly PairPayoutCents per pair. SurplusCollateralCents accrues
// the difference between what matched buyers paid and the nominal reserve
// (and what burns released below it); it is swept to the treasury account at
// settlement. Both aggregates change only through mint, burn, or settlement,
// never through plain cancellation.
type Market struct {
	ID                     string
	SeasonID               string
	Question               string
	OutstandingPairs       int64
	LockedCollateralCents  int64
	SurplusCollateralCents int64
	LastPriceCents         int64 // last traded YES price
	Status                 MarketStatus
	WinningOutcome         *Outcome
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
