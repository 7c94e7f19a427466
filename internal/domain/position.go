package domain

import "time"

// Position holds a user's YES/NO share counts in one market together with
// the weighted average acquisition price per side. Averages are recomputed
// only when a side's share count increases; decreases (burns, settlement)
// leave them untouched. Positions are created lazily on first trade and
// never deleted.
type Position struct {
	MarketID         string
	UserID           string
	YesShares        int64
	NoShares         int64
	AvgYesPriceCents int64
	AvgNoPriceCents  int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Shares returns the share count for the given outcome.
func (p Position) Shares(o Outcome) int64 {
	if o == OutcomeYes {
		return p.YesShares
	}
	return p.NoShares
}

// AddShares increases the share count for outcome o by qty acquired at
// priceCents, folding the acquisition into the side's weighted average.
func (p *Position) AddShares(o Outcome, qty, priceCents int64) {
	if qty <= 0 {
		return
	}
	switch o {
	case OutcomeYes:
		total := p.YesShares + qty
		p.AvgYesPriceCents = (p.AvgYesPriceCents*p.YesShares + priceCents*qty) / total
		p.YesShares = total
	case OutcomeNo:
		total := p.NoShares + qty
		p.AvgNoPriceCents = (p.AvgNoPriceCents*p.NoShares + priceCents*qty) / total
		p.NoShares = total
	}
}

// RemoveShares decreases the share count for outcome o by qty. The weighted
// average is intentionally left unchanged.
func (p *Position) RemoveShares(o Outcome, qty int64) {
	switch o {
	case OutcomeYes:
		p.YesShares -= qty
	case OutcomeNo:
		p.NoShares -= qty
	}
}

// ShareHolder is one row of a market's winning-side holder report, joined
// with the holder's wallet address for payout export.
type ShareHolder struct {
	UserID        string
	YesShares     int64
	WalletAddress string
}
