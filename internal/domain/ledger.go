package domain

import "time"

// LedgerReason is the audit code explaining a balance movement.
type LedgerReason string

const (
	// LedgerReasonDeposit funds an account from outside the exchange.
	LedgerReasonDeposit LedgerReason = "deposit"

	// LedgerReasonOrderLock debits collateral against a new buy order.
	LedgerReasonOrderLock LedgerReason = "order_lock"

	// LedgerReasonOrderRelease refunds unfilled collateral on cancellation.
	LedgerReasonOrderRelease LedgerReason = "order_release"

	// LedgerReasonBurnRelease pays a seller its own limit price per share
	// when a complementary pair is burned.
	LedgerReasonBurnRelease LedgerReason = "burn_release"

	// LedgerReasonSettlementPayout pays a winning-side holder
	// PairPayoutCents per share at settlement.
	LedgerReasonSettlementPayout LedgerReason = "settlement_payout"

	// LedgerReasonSurplusSweep moves a settled market's accumulated mint/burn
	// surplus to the treasury account.
	LedgerReasonSurplusSweep LedgerReason = "surplus_sweep"
)

// LedgerEntry is one append-only balance movement. AmountCents is signed:
// negative for debits, positive for credits. BalanceBeforeCents and
// BalanceAfterCents snapshot the cached running total around the movement so
// the ledger is self-auditing.
type LedgerEntry struct {
	ID                 string
	UserID             string
	MarketID           string
	OrderID            *string
	AmountCents        int64
	Reason             LedgerReason
	BalanceBeforeCents int64
	BalanceAfterCents  int64
	CreatedAt          time.Time
}
