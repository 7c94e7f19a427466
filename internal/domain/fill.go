package domain

import "time"

// FillType distinguishes pair creation from pair destruction.
type FillType string

const (
	// FillTypeMint pairs two complementary buy orders whose limit prices sum
	// to at least PairPayoutCents, creating one YES and one NO share per unit.
	FillTypeMint FillType = "mint"

	// FillTypeBurn pairs two complementary sell orders whose limit prices sum
	// to at most PairPayoutCents, destroying one YES and one NO share per unit.
	FillTypeBurn FillType = "burn"
)

// Fill records one maker/taker match. YesPriceCents and NoPriceCents are each
// side's own limit price, never a clearing price. Fills are append-only.
type Fill struct {
	ID                  string
	MarketID            string
	TakerOrderID        string
	MakerOrderID        string
	TakerUserID         string
	MakerUserID         string
	Type                FillType
	Quantity            int64
	YesPriceCents       int64
	NoPriceCents        int64
	CollateralMovedCents int64
	CreatedAt           time.Time
}
