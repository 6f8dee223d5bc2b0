package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is one end-of-day bar for an instrument. The latest row by date
// provides the close used for market-order pricing and position valuation.
type MarketData struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	InstrumentID  uint            `gorm:"index:idx_market_data_instrument_date,unique" json:"instrumentId"`
	High          decimal.Decimal `gorm:"type:numeric" json:"high"`
	Low           decimal.Decimal `gorm:"type:numeric" json:"low"`
	Open          decimal.Decimal `gorm:"type:numeric" json:"open"`
	Close         decimal.Decimal `gorm:"type:numeric" json:"close"`
	PreviousClose decimal.Decimal `gorm:"type:numeric" json:"previousClose"`
	Date          time.Time       `gorm:"index:idx_market_data_instrument_date,unique" json:"date"`
}
