package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order. CASH_IN and CASH_OUT are ledger
// movements against the cash instrument, not tradable sides.
type OrderSide string

const (
	SideBuy     OrderSide = "BUY"
	SideSell    OrderSide = "SELL"
	SideCashIn  OrderSide = "CASH_IN"
	SideCashOut OrderSide = "CASH_OUT"
)

// OrderType distinguishes immediately-executed market orders from resting
// limit orders.
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// OrderStatus is assigned once, before the order's single save.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
)

// Order is a row in the append-only order ledger. Size is always positive;
// the side carries the sign. CASH_IN/CASH_OUT rows use the cash instrument
// with price fixed at 1.00 and size counted in currency units.
type Order struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	InstrumentID uint            `gorm:"index" json:"instrumentId"`
	UserID       uint            `gorm:"index" json:"userId"`
	Size         int64           `json:"size"`
	Price        decimal.Decimal `gorm:"type:numeric" json:"price"`
	Type         OrderType       `json:"type"`
	Side         OrderSide       `json:"side"`
	Status       OrderStatus     `json:"status"`
	Datetime     time.Time       `json:"datetime"`
}

// Notional is the cash value of the order (price * size).
func (o Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Size))
}
