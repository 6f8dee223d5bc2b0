// Package ledger holds the pure reductions over a user's filled-order
// history. Both the order acceptance pipeline and the portfolio aggregation
// use these; there is a single definition of holdings so the SELL check and
// the displayed position quantity cannot drift apart.
package ledger

import (
	"github.com/shopspring/decimal"

	"broker-backend-go/internal/models"
)

// BuyingPower reduces a user's filled orders into net available cash:
// cash_in - cash_out - buy_notional + sell_notional. CASH_IN/CASH_OUT sizes
// count as raw currency units. No intermediate rounding; the result is
// independent of the order of the input and may be negative if the ledger is
// internally inconsistent (callers decide policy).
func BuyingPower(filled []models.Order) decimal.Decimal {
	var cashIn, cashOut int64
	buys := decimal.Zero
	sells := decimal.Zero
	for _, o := range filled {
		switch o.Side {
		case models.SideCashIn:
			cashIn += o.Size
		case models.SideCashOut:
			cashOut += o.Size
		case models.SideBuy:
			buys = buys.Add(o.Notional())
		case models.SideSell:
			sells = sells.Add(o.Notional())
		}
	}
	return decimal.NewFromInt(cashIn).
		Sub(decimal.NewFromInt(cashOut)).
		Sub(buys).
		Add(sells)
}

// Holdings reduces filled orders for one instrument into the net share count:
// sum of BUY sizes minus sum of SELL sizes. An empty list yields 0; a
// negative result signals more historical sells than buys (data corruption).
func Holdings(filled []models.Order) int64 {
	var net int64
	for _, o := range filled {
		switch o.Side {
		case models.SideBuy:
			net += o.Size
		case models.SideSell:
			net -= o.Size
		}
	}
	return net
}
