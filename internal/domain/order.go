package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the order lifecycle. Orders are immutable once filled
// or cancelled.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a resting or incoming limit order on one outcome of a market.
// CollateralLockedCents is set only for buy orders and equals
// PriceCents × Quantity at placement; sell orders are collateralized by the
// held shares themselves.
type Order struct {
	ID                    string
	MarketID              string
	UserID                string
	Outcome               Outcome
	Side                  OrderSide
	PriceCents            int64
	Quantity              int64
	FilledQuantity        int64
	Status                OrderStatus
	CollateralLockedCents int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Terminal reports whether the order can no longer change.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// Resting reports whether the order still provides liquidity.
func (o Order) Resting() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPartial
}
