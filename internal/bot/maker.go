// Package bot runs the market-maker: a periodic quoting loop that keeps
// two-sided liquidity on every active market while bounding inventory risk.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/engine"
)

const (
	defaultInterval       = 30 * time.Second
	defaultSpreadCents    = 6
	defaultBaseSize       = 10
	defaultInventoryLimit = 100

	// skewCentsPerLimit shifts the quoting mid by up to this many cents as
	// net inventory approaches the limit.
	skewCentsPerLimit = 5

	cycleLockKey = "mm:cycle"
)

var (
	// ErrAlreadyRunning is returned by Start when the loop is active.
	ErrAlreadyRunning = errors.New("bot: already running")

	// ErrNotRunning is returned by Stop when the loop is not active.
	ErrNotRunning = errors.New("bot: not running")
)

// Exchange is the slice of the matching engine the bot drives.
type Exchange interface {
	ListActiveMarkets(ctx context.Context) ([]domain.Market, error)
	GetPosition(ctx context.Context, marketID, userID string) (domain.Position, error)
	GetUserPositions(ctx context.Context, userID string) ([]domain.Position, error)
	CancelUserOrders(ctx context.Context, marketID, userID string) (int64, error)
	PlaceOrder(ctx context.Context, p engine.PlaceOrderParams) (domain.Order, []domain.Fill, error)
}

// Config tunes the quoting loop. Zero values fall back to defaults.
type Config struct {
	// UserID is the funded exchange account the bot trades as.
	UserID string

	// Interval between quoting cycles. The first cycle runs immediately.
	Interval time.Duration

	// SpreadCents is the full bid-ask spread around the adjusted mid.
	SpreadCents int64

	// BaseSize is the full-tier quote size in shares.
	BaseSize int64

	// InventoryLimit bounds |yesShares − noShares|; buys stop at the bound.
	InventoryLimit int64

	// MinPriceCents and MaxPriceCents clamp quotes inside the book's
	// valid tick range.
	MinPriceCents int64
	MaxPriceCents int64
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.SpreadCents <= 0 {
		c.SpreadCents = defaultSpreadCents
	}
	if c.BaseSize <= 0 {
		c.BaseSize = defaultBaseSize
	}
	if c.InventoryLimit <= 0 {
		c.InventoryLimit = defaultInventoryLimit
	}
	if c.MinPriceCents <= 0 {
		c.MinPriceCents = domain.MinPriceCents
	}
	if c.MaxPriceCents <= 0 || c.MaxPriceCents > domain.MaxPriceCents {
		c.MaxPriceCents = domain.MaxPriceCents
	}
}

// Status is a point-in-time report of the bot's state.
type Status struct {
	Running   bool              `json:"running"`
	UserID    string            `json:"user_id"`
	Interval  time.Duration     `json:"interval"`
	Positions []domain.Position `json:"positions,omitempty"`
}

// MarketMaker lays symmetric YES/NO quotes around an inventory-skewed mid on
// every active market, re-quoting from scratch each cycle.
type MarketMaker struct {
	cfg    Config
	exch   Exchange
	locks  domain.LockManager
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a MarketMaker. locks may be nil, in which case cycles are only
// serialized within this process.
func New(cfg Config, exch Exchange, locks domain.LockManager, logger *slog.Logger) *MarketMaker {
	cfg.applyDefaults()
	return &MarketMaker{
		cfg:    cfg,
		exch:   exch,
		locks:  locks,
		logger: logger.With(slog.String("component", "market_maker")),
	}
}

// Start launches the quoting loop. The first cycle runs immediately and then
// every Interval until Stop is called or ctx is cancelled.
func (m *MarketMaker) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(loopCtx)

	m.logger.Info("market maker started",
		slog.String("user_id", m.cfg.UserID),
		slog.Duration("interval", m.cfg.Interval),
	)
	return nil
}

// Stop halts the loop and waits for the in-flight cycle to finish.
func (m *MarketMaker) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done

	m.logger.Info("market maker stopped")
	return nil
}

// Status reports the running flag, bot account, and current positions. The
// position read is best-effort; a store error leaves Positions empty.
func (m *MarketMaker) Status(ctx context.Context) Status {
	m.mu.Lock()
	running := m.cancel != nil
	m.mu.Unlock()

	st := Status{
		Running:  running,
		UserID:   m.cfg.UserID,
		Interval: m.cfg.Interval,
	}
	positions, err := m.exch.GetUserPositions(ctx, m.cfg.UserID)
	if err != nil {
		m.logger.Warn("status position read failed", slog.String("error", err.Error()))
		return st
	}
	st.Positions = positions
	return st
}

func (m *MarketMaker) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

// cycle re-quotes every active market. Per-market errors are logged and
// skipped so one bad market never stops the loop.
func (m *MarketMaker) cycle(ctx context.Context) {
	if m.locks != nil {
		unlock, err := m.locks.Acquire(ctx, cycleLockKey, m.cfg.Interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				m.logger.Debug("cycle lock held, skipping")
				return
			}
			m.logger.Warn("cycle lock acquire failed", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	markets, err := m.exch.ListActiveMarkets(ctx)
	if err != nil {
		m.logger.Error("list active markets failed", slog.String("error", err.Error()))
		return
	}

	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		if err := m.quoteMarket(ctx, market); err != nil {
			m.logger.Error("quote cycle failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// quoteMarket cancels the bot's resting orders and lays fresh quotes around
// the inventory-adjusted mid.
func (m *MarketMaker) quoteMarket(ctx context.Context, market domain.Market) error {
	if _, err := m.exch.CancelUserOrders(ctx, market.ID, m.cfg.UserID); err != nil {
		return err
	}

	pos, err := m.exch.GetPosition(ctx, market.ID, m.cfg.UserID)
	if err != nil {
		return err
	}
	netPos := pos.YesShares - pos.NoShares

	mid := m.adjustedMid(market.LastPriceCents, netPos)
	half := m.cfg.SpreadCents / 2
	yesBid := m.clampPrice(mid - half)
	yesAsk := m.clampPrice(mid + half)
	// Complement pricing: the bid pair sums to exactly one payout, so the
	// bot's own quotes always form a mintable (and burnable) pair.
	noBid := domain.PairPayoutCents - yesBid
	noAsk := domain.PairPayoutCents - yesAsk

	size := m.tierSize(netPos)
	quotes := m.buildQuotes(pos, netPos, yesBid, yesAsk, noBid, noAsk, size)

	for _, q := range quotes {
		q.MarketID = market.ID
		q.UserID = m.cfg.UserID
		if _, _, err := m.exch.PlaceOrder(ctx, q); err != nil {
			m.logger.Warn("quote rejected",
				slog.String("market_id", market.ID),
				slog.String("outcome", string(q.Outcome)),
				slog.String("side", string(q.Side)),
				slog.Int64("price_cents", q.PriceCents),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// adjustedMid shifts the last trade price against the bot's net inventory:
// long YES pushes quotes down, long NO pushes them up.
func (m *MarketMaker) adjustedMid(lastPriceCents, netPos int64) int64 {
	skew := netPos * skewCentsPerLimit / (2 * m.cfg.InventoryLimit)
	return m.clampPrice(lastPriceCents - skew)
}

func (m *MarketMaker) clampPrice(p int64) int64 {
	if p < m.cfg.MinPriceCents {
		return m.cfg.MinPriceCents
	}
	if p > m.cfg.MaxPriceCents {
		return m.cfg.MaxPriceCents
	}
	return p
}

// tierSize scales quote size down as inventory builds: full size below half
// the limit, three quarters below 80%, half above.
func (m *MarketMaker) tierSize(netPos int64) int64 {
	abs := netPos
	if abs < 0 {
		abs = -abs
	}
	var size int64
	switch {
	case abs*2 < m.cfg.InventoryLimit:
		size = m.cfg.BaseSize
	case abs*5 < m.cfg.InventoryLimit*4:
		size = m.cfg.BaseSize * 3 / 4
	default:
		size = m.cfg.BaseSize / 2
	}
	if size < 1 {
		size = 1
	}
	return size
}

// buildQuotes assembles the cycle's orders: two bids while inventory is
// inside the limit, and asks capped at held shares.
func (m *MarketMaker) buildQuotes(pos domain.Position, netPos, yesBid, yesAsk, noBid, noAsk, size int64) []engine.PlaceOrderParams {
	var quotes []engine.PlaceOrderParams

	abs := netPos
	if abs < 0 {
		abs = -abs
	}
	if abs < m.cfg.InventoryLimit {
		quotes = append(quotes,
			engine.PlaceOrderParams{Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy, PriceCents: yesBid, Quantity: size},
			engine.PlaceOrderParams{Outcome: domain.OutcomeNo, Side: domain.OrderSideBuy, PriceCents: noBid, Quantity: size},
		)
	}
	if pos.YesShares > 0 {
		qty := size
		if pos.YesShares < qty {
			qty = pos.YesShares
		}
		quotes = append(quotes, engine.PlaceOrderParams{Outcome: domain.OutcomeYes, Side: domain.OrderSideSell, PriceCents: yesAsk, Quantity: qty})
	}
	if pos.NoShares > 0 {
		qty := size
		if pos.NoShares < qty {
			qty = pos.NoShares
		}
		quotes = append(quotes, engine.PlaceOrderParams{Outcome: domain.OutcomeNo, Side: domain.OrderSideSell, PriceCents: noAsk, Quantity: qty})
	}
	return quotes
}
