// Package orders implements the order acceptance pipeline: request
// validation, collaborator resolution, pricing and sizing, the
// funds/holdings check and the single persistence call.
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"broker-backend-go/internal/apperr"
	"broker-backend-go/internal/ledger"
	"broker-backend-go/internal/models"
)

// UserStore loads account holders.
type UserStore interface {
	Get(ctx context.Context, id uint) (models.User, error)
}

// InstrumentStore resolves tickers to instruments.
type InstrumentStore interface {
	GetByTicker(ctx context.Context, ticker string) (models.Instrument, error)
}

// MarketDataStore provides the latest bar for market-order pricing.
type MarketDataStore interface {
	LatestByInstrument(ctx context.Context, instrumentID uint) (models.MarketData, error)
}

// OrderStore reads the filled-order ledger and appends new orders.
type OrderStore interface {
	FindFilledByUser(ctx context.Context, userID uint) ([]models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// CreateRequest is the inbound order submission. Exactly one of Size and
// Amount must be set; Price is required for LIMIT orders and forbidden for
// MARKET orders.
type CreateRequest struct {
	InstrumentTicker string           `json:"instrumentTicker"`
	UserID           uint             `json:"userId"`
	Type             models.OrderType `json:"type"`
	Side             models.OrderSide `json:"side"`
	Size             *int64           `json:"size,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
}

// Service accepts or rejects new orders. Every non-error submission persists
// exactly one order row, including rejections.
type Service struct {
	log         *zap.Logger
	users       UserStore
	instruments InstrumentStore
	marketData  MarketDataStore
	orders      OrderStore
}

// NewService creates an order service.
func NewService(log *zap.Logger, users UserStore, instruments InstrumentStore, marketData MarketDataStore, orders OrderStore) *Service {
	return &Service{
		log:         log,
		users:       users,
		instruments: instruments,
		marketData:  marketData,
		orders:      orders,
	}
}

// Submit runs the acceptance pipeline for one order request and returns the
// persisted order. A failed funds or holdings check is not an error: the
// order comes back with status REJECTED. No locks are held across the
// read-then-decide-then-write sequence, so two concurrent submissions for
// the same user can both pass the check against a stale ledger snapshot;
// that race is accepted.
func (s *Service) Submit(ctx context.Context, req CreateRequest) (models.Order, error) {
	if err := validateRequest(req); err != nil {
		return models.Order{}, err
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return models.Order{}, err
	}
	instrument, err := s.instruments.GetByTicker(ctx, req.InstrumentTicker)
	if err != nil {
		return models.Order{}, err
	}
	rawPrice, err := s.resolveRawPrice(ctx, req, instrument)
	if err != nil {
		return models.Order{}, err
	}

	order, err := buildOrder(req, user, instrument, rawPrice)
	if err != nil {
		return models.Order{}, err
	}

	filled, err := s.orders.FindFilledByUser(ctx, user.ID)
	if err != nil {
		return models.Order{}, err
	}
	s.applyFundsAndHoldingsCheck(&order, filled)

	if err := s.orders.Save(ctx, &order); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// resolveRawPrice returns the unrounded execution price: the latest close
// for MARKET orders, the requested price for LIMIT orders. Only MARKET
// orders reach the market-data store.
func (s *Service) resolveRawPrice(ctx context.Context, req CreateRequest, instrument models.Instrument) (decimal.Decimal, error) {
	if req.Type == models.TypeMarket {
		md, err := s.marketData.LatestByInstrument(ctx, instrument.ID)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return md.Close, nil
	}
	return *req.Price, nil
}

// applyFundsAndHoldingsCheck flips the order status to REJECTED when the
// user lacks cash (BUY) or shares (SELL); otherwise the pre-assigned status
// stands. The shortfall is logged at warning level either way.
func (s *Service) applyFundsAndHoldingsCheck(order *models.Order, filled []models.Order) {
	switch order.Side {
	case models.SideBuy:
		power := ledger.BuyingPower(filled)
		required := order.Notional()
		if power.LessThan(required) {
			order.Status = models.StatusRejected
			s.log.Warn("Order REJECTED: insufficient cash",
				zap.String("needed", required.String()),
				zap.String("available", power.String()))
		}
	case models.SideSell:
		var instrumentFilled []models.Order
		for _, o := range filled {
			if o.InstrumentID == order.InstrumentID {
				instrumentFilled = append(instrumentFilled, o)
			}
		}
		net := ledger.Holdings(instrumentFilled)
		if net < order.Size {
			order.Status = models.StatusRejected
			s.log.Warn("Order REJECTED: insufficient holdings",
				zap.Int64("have", net),
				zap.Int64("trying_to_sell", order.Size))
		}
	}
}

// buildOrder prices and sizes the order from the validated request. Prices
// round to two decimals half-up; size derived from amount truncates toward
// zero so the notional never exceeds the requested amount.
func buildOrder(req CreateRequest, user models.User, instrument models.Instrument, rawPrice decimal.Decimal) (models.Order, error) {
	execPrice := rawPrice.Round(2)

	var size int64
	if req.Amount != nil {
		if execPrice.Sign() <= 0 {
			return models.Order{}, apperr.Validationf("amount too small to execute at current price")
		}
		// QuoRem is exact; Div rounds and could step across an integer
		// boundary, sizing the order past the requested amount.
		quo, _ := req.Amount.QuoRem(execPrice, 0)
		size = quo.IntPart()
		if size <= 0 {
			return models.Order{}, apperr.Validationf("amount too small to execute at current price")
		}
	} else {
		size = *req.Size
	}

	status := models.StatusNew
	if req.Type == models.TypeMarket {
		status = models.StatusFilled
	}

	return models.Order{
		UserID:       user.ID,
		InstrumentID: instrument.ID,
		Side:         req.Side,
		Type:         req.Type,
		Size:         size,
		Price:        execPrice,
		Status:       status,
		Datetime:     time.Now(),
	}, nil
}

// validateRequest enforces the request-level rules that need no store
// access. It fails fast with a validation error naming the violated rule.
func validateRequest(req CreateRequest) error {
	if strings.TrimSpace(req.InstrumentTicker) == "" {
		return apperr.Validationf("instrument ticker is blank")
	}
	if req.UserID == 0 {
		return apperr.Validationf("user id is required")
	}
	if req.Type == "" {
		return apperr.Validationf("type is required")
	}
	if req.Type != models.TypeMarket && req.Type != models.TypeLimit {
		return apperr.Validationf("unknown order type %q", req.Type)
	}
	if req.Side == "" {
		return apperr.Validationf("side is required")
	}
	if req.Side == models.SideCashIn || req.Side == models.SideCashOut {
		return apperr.Validationf("CASH_IN/CASH_OUT are not supported by this endpoint")
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return apperr.Validationf("unknown order side %q", req.Side)
	}
	if req.Type == models.TypeMarket && req.Price != nil {
		return apperr.Validationf("price must be omitted for MARKET")
	}
	if req.Type == models.TypeLimit && (req.Price == nil || req.Price.Sign() <= 0) {
		return apperr.Validationf("price must be > 0 for LIMIT")
	}
	hasSize := req.Size != nil && *req.Size > 0
	hasAmount := req.Amount != nil && req.Amount.Sign() > 0
	if hasSize == hasAmount {
		return apperr.Validationf("provide exactly one of size or amount")
	}
	return nil
}
