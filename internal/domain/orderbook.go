package domain

import "time"

// BookLevel aggregates the resting quantity at one price on one ladder.
type BookLevel struct {
	PriceCents int64
	Quantity   int64
	Orders     int
}

// OrderBookSnapshot is the four-ladder view of a market's open and partial
// orders: YES bids (price desc), YES asks (price asc), NO bids, NO asks.
// It is a pure read-time aggregation, re-derivable at any time from the
// order store alone.
type OrderBookSnapshot struct {
	MarketID       string
	YesBids        []BookLevel
	YesAsks        []BookLevel
	NoBids         []BookLevel
	NoAsks         []BookLevel
	LastPriceCents int64
	Timestamp      time.Time
}
