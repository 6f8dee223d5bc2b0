// Package portfolio computes a user's portfolio by replaying their filled
// trade history into positions, cash balance and total value.
package portfolio

import (
	"context"
	"errors"
	"sync"

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

// OrderStore reads the filled-order ledger.
type OrderStore interface {
	FindFilledByUser(ctx context.Context, userID uint) ([]models.Order, error)
}

// InstrumentStore resolves instrument metadata by ID.
type InstrumentStore interface {
	GetByID(ctx context.Context, id uint) (models.Instrument, error)
}

// MarketDataStore provides the latest bar for position valuation.
type MarketDataStore interface {
	LatestByInstrument(ctx context.Context, instrumentID uint) (models.MarketData, error)
}

// Position is one instrument holding, derived on every read.
type Position struct {
	Ticker     string          `json:"ticker"`
	Quantity   int64           `json:"quantity"`
	Value      decimal.Decimal `json:"value"`
	PnlPercent decimal.Decimal `json:"pnlPercent"`
}

// Portfolio is the computed account state: identity, cash, positions and
// total value. Nothing here is persisted.
type Portfolio struct {
	UserID        uint            `json:"userId"`
	Email         string          `json:"email"`
	AccountNumber string          `json:"accountNumber"`
	BuyingPower   decimal.Decimal `json:"buyingPower"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	Positions     []Position      `json:"positions"`
}

// Service aggregates portfolios. The data-corruption policy (fail the whole
// read vs skip the affected instrument) is fixed at construction.
type Service struct {
	log                  *zap.Logger
	users                UserStore
	orders               OrderStore
	instruments          InstrumentStore
	marketData           MarketDataStore
	failOnDataCorruption bool
}

// NewService creates a portfolio service with the given corruption policy.
func NewService(log *zap.Logger, users UserStore, orders OrderStore, instruments InstrumentStore, marketData MarketDataStore, failOnDataCorruption bool) *Service {
	return &Service{
		log:                  log,
		users:                users,
		orders:               orders,
		instruments:          instruments,
		marketData:           marketData,
		failOnDataCorruption: failOnDataCorruption,
	}
}

// Get computes the portfolio for the user. The filled-order ledger is
// fetched once and reused for both position building and the cash balance.
// Positions carry no ordering guarantee.
func (s *Service) Get(ctx context.Context, userID uint) (Portfolio, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}

	filled, err := s.orders.FindFilledByUser(ctx, user.ID)
	if err != nil {
		return Portfolio{}, err
	}

	positions, err := s.buildPositions(ctx, filled)
	if err != nil {
		return Portfolio{}, err
	}

	buyingPower := ledger.BuyingPower(filled)
	totalValue := buyingPower
	for _, p := range positions {
		totalValue = totalValue.Add(p.Value)
	}

	return Portfolio{
		UserID:        user.ID,
		Email:         user.Email,
		AccountNumber: user.AccountNumber,
		BuyingPower:   buyingPower,
		TotalValue:    totalValue,
		Positions:     positions,
	}, nil
}

type positionResult struct {
	position *Position
	err      error
}

// buildPositions groups BUY/SELL orders by instrument and builds each
// group's position concurrently. Zero-quantity and (under the skip policy)
// corrupt positions are omitted.
func (s *Service) buildPositions(ctx context.Context, filled []models.Order) ([]Position, error) {
	groups := make(map[uint][]models.Order)
	for _, o := range filled {
		if o.Side != models.SideBuy && o.Side != models.SideSell {
			continue
		}
		groups[o.InstrumentID] = append(groups[o.InstrumentID], o)
	}

	var wg sync.WaitGroup
	results := make(chan positionResult, len(groups))
	for instrumentID, group := range groups {
		wg.Add(1)
		go func(instrumentID uint, group []models.Order) {
			defer wg.Done()
			pos, err := s.buildPosition(ctx, instrumentID, group)
			results <- positionResult{position: pos, err: err}
		}(instrumentID, group)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]Position, 0, len(groups))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if res.position != nil {
			positions = append(positions, *res.position)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return positions, nil
}

// buildPosition fetches instrument metadata and the latest bar concurrently,
// then derives quantity, value and P&L for one instrument. A nil position
// means the instrument is omitted (closed out, or skipped as corrupt).
func (s *Service) buildPosition(ctx context.Context, instrumentID uint, group []models.Order) (*Position, error) {
	var (
		instrument models.Instrument
		md         models.MarketData
		instErr    error
		mdErr      error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		instrument, instErr = s.instruments.GetByID(ctx, instrumentID)
	}()
	go func() {
		defer wg.Done()
		md, mdErr = s.marketData.LatestByInstrument(ctx, instrumentID)
	}()
	wg.Wait()

	if instErr != nil {
		return nil, instErr
	}
	// A missing bar values the position at zero; other lookup failures abort.
	var notFound *apperr.NotFoundError
	if mdErr != nil {
		if !errors.As(mdErr, &notFound) {
			return nil, mdErr
		}
		md = models.MarketData{}
	}

	quantity := ledger.Holdings(group)
	if quantity < 0 {
		if s.failOnDataCorruption {
			return nil, &apperr.DataCorruptionError{Ticker: instrument.Ticker}
		}
		s.log.Warn("Inconsistent trades for instrument - skipping position",
			zap.String("ticker", instrument.Ticker))
		return nil, nil
	}
	if quantity == 0 {
		return nil, nil
	}

	var buyQty int64
	totalBuyCost := decimal.Zero
	for _, o := range group {
		if o.Side == models.SideBuy {
			buyQty += o.Size
			totalBuyCost = totalBuyCost.Add(o.Notional())
		}
	}
	avgPrice := decimal.Zero
	if buyQty > 0 {
		avgPrice = totalBuyCost.DivRound(decimal.NewFromInt(buyQty), 8)
	}

	value := md.Close.Mul(decimal.NewFromInt(quantity))
	pnlPercent := decimal.Zero
	if avgPrice.Sign() > 0 && md.Close.Sign() > 0 {
		pnlPercent = md.Close.DivRound(avgPrice, 8).
			Sub(decimal.NewFromInt(1)).
			Mul(decimal.NewFromInt(100))
	}

	return &Position{
		Ticker:     instrument.Ticker,
		Quantity:   quantity,
		Value:      value,
		PnlPercent: pnlPercent,
	}, nil
}
