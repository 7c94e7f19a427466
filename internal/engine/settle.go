package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
)

// FreezeAllMarkets moves every active market of the season to frozen and
// force-cancels its resting orders with the standard pro-rata refunds. New
// orders against a frozen market are rejected. Failures on one market do not
// stop the rest; the joined error reports every market that failed.
func (e *Engine) FreezeAllMarkets(ctx context.Context, seasonID string) error {
	markets, err := e.store.Markets().ListBySeason(ctx, seasonID)
	if err != nil {
		return fmt.Errorf("engine: freeze markets: %w", err)
	}

	var errs []error
	for _, market := range markets {
		if market.Status != domain.MarketStatusActive {
			continue
		}
		if err := e.freezeMarket(ctx, market.ID); err != nil {
			e.logger.ErrorContext(ctx, "market freeze failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("market %s: %w", market.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("engine: freeze markets: %w", errors.Join(errs...))
	}

	e.logger.InfoContext(ctx, "season markets frozen",
		slog.String("season_id", seasonID),
		slog.Int("markets", len(markets)),
	)
	return nil
}

func (e *Engine) freezeMarket(ctx context.Context, marketID string) error {
	lock := e.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetForUpdate(ctx, marketID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrMarketNotFound
			}
			return err
		}
		if market.Status != domain.MarketStatusActive {
			return domain.ErrMarketInactive
		}
		if _, err := cancelAllResting(ctx, tx, marketID, newUserCache()); err != nil {
			return err
		}
		market.Status = domain.MarketStatusFrozen
		market.UpdatedAt = time.Now().UTC()
		return tx.Markets().Update(ctx, market)
	})
	if err != nil {
		return err
	}
	e.afterMutation(ctx, marketID, nil)
	return nil
}

// SettleMarket resolves a frozen market to the winning outcome. Any orders
// still resting are force-cancelled with refunds, every winning-side holder
// is paid PairPayoutCents per share with a settlement_payout ledger entry,
// the accumulated mint/burn surplus is swept to the treasury account, and
// the market becomes settled, which is terminal.
func (e *Engine) SettleMarket(ctx context.Context, marketID string, winner domain.Outcome) error {
	if !winner.Valid() {
		return fmt.Errorf("engine: settle market: %w", domain.ErrInvalidOrderParams)
	}

	lock := e.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	var paidOut int64
	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetForUpdate(ctx, marketID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrMarketNotFound
			}
			return err
		}
		if market.Status != domain.MarketStatusFrozen {
			return domain.ErrMarketNotFrozen
		}

		users := newUserCache()
		if _, err := cancelAllResting(ctx, tx, marketID, users); err != nil {
			return err
		}

		positions, err := tx.Positions().ListByMarket(ctx, marketID)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			shares := pos.Shares(winner)
			if shares <= 0 {
				continue
			}
			holder, err := users.get(ctx, tx, pos.UserID)
			if err != nil {
				return err
			}
			payout := shares * domain.PairPayoutCents
			if err := applyBalance(ctx, tx, holder, marketID, nil, payout, domain.LedgerReasonSettlementPayout); err != nil {
				return err
			}
			paidOut += payout
		}

		if market.SurplusCollateralCents > 0 {
			if e.treasury == "" {
				return domain.ErrNoTreasury
			}
			treasury, err := e.ensureTreasury(ctx, tx, users)
			if err != nil {
				return err
			}
			if err := applyBalance(ctx, tx, treasury, marketID, nil, market.SurplusCollateralCents, domain.LedgerReasonSurplusSweep); err != nil {
				return err
			}
			market.SurplusCollateralCents = 0
		}

		market.OutstandingPairs = 0
		market.LockedCollateralCents = 0
		market.Status = domain.MarketStatusSettled
		market.WinningOutcome = &winner
		market.UpdatedAt = time.Now().UTC()
		return tx.Markets().Update(ctx, market)
	})
	if err != nil {
		return fmt.Errorf("engine: settle market: %w", err)
	}

	e.logger.InfoContext(ctx, "market settled",
		slog.String("market_id", marketID),
		slog.String("winner", string(winner)),
		slog.Int64("paid_out_cents", paidOut),
	)
	e.afterMutation(ctx, marketID, nil)
	e.publishEvent(ctx, "settlements", map[string]any{
		"event":          "market_settled",
		"market_id":      marketID,
		"winner":         string(winner),
		"paid_out_cents": paidOut,
	})
	return nil
}

// ensureTreasury loads the treasury account, creating its row on the first
// surplus sweep. The account is internal and has no wallet.
func (e *Engine) ensureTreasury(ctx context.Context, tx domain.Tx, users *userCache) (*domain.User, error) {
	treasury, err := users.get(ctx, tx, e.treasury)
	if err == nil || !errors.Is(err, domain.ErrUserNotFound) {
		return treasury, err
	}
	row := domain.User{ID: e.treasury, CreatedAt: time.Now().UTC()}
	if err := tx.Users().Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create treasury account: %w", err)
	}
	return users.get(ctx, tx, e.treasury)
}
