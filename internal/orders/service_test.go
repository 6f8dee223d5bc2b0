package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"broker-backend-go/internal/apperr"
	"broker-backend-go/internal/models"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Get(ctx context.Context, id uint) (models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

type MockInstrumentStore struct {
	mock.Mock
}

func (m *MockInstrumentStore) GetByTicker(ctx context.Context, ticker string) (models.Instrument, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(models.Instrument), args.Error(1)
}

type MockMarketDataStore struct {
	mock.Mock
}

func (m *MockMarketDataStore) LatestByInstrument(ctx context.Context, instrumentID uint) (models.MarketData, error) {
	args := m.Called(ctx, instrumentID)
	return args.Get(0).(models.MarketData), args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) FindFilledByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderStore) Save(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptrInt64(v int64) *int64 { return &v }

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// setupTest wires a service against fresh mocks with a known user and
// instrument.
func setupTest() (*Service, *MockUserStore, *MockInstrumentStore, *MockMarketDataStore, *MockOrderStore) {
	users := new(MockUserStore)
	instruments := new(MockInstrumentStore)
	marketData := new(MockMarketDataStore)
	orderStore := new(MockOrderStore)
	svc := NewService(zap.NewNop(), users, instruments, marketData, orderStore)
	return svc, users, instruments, marketData, orderStore
}

var (
	testUser       = models.User{ID: 1, Email: "user@test.com", AccountNumber: "10001"}
	testInstrument = models.Instrument{ID: 47, Ticker: "PAMP", Name: "Pampa Energia", Type: models.InstrumentStock}
)

func TestSubmit_MarketBuyByAmount_Filled(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("100.00")}, nil)
	// A previous cash-in of 1M covers the 150k notional.
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 1_000_000},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Amount:           ptrDec("150000"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusFilled, order.Status)
	assert.Equal(t, models.TypeMarket, order.Type)
	assert.Equal(t, models.SideBuy, order.Side)
	assert.Equal(t, uint(47), order.InstrumentID)
	assert.Equal(t, uint(1), order.UserID)
	assert.Equal(t, int64(1500), order.Size)
	assert.Equal(t, "100.00", order.Price.StringFixed(2))
	orderStore.AssertNumberOfCalls(t, "Save", 1)
}

func TestSubmit_SizeFromAmount_TruncatesAtBoundary(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("0.01")}, nil)
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 1000},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	// 0.0299999999999999995 / 0.01 = 2.99999999999999995; a rounding
	// division would size this at 3 and spend more than the amount.
	amount := dec("0.0299999999999999995")
	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Amount:           &amount,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(2), order.Size)
	assert.True(t, order.Notional().LessThanOrEqual(amount),
		"notional %s must not exceed requested amount %s", order.Notional(), amount)
}

func TestSubmit_MarketBuy_InsufficientCash_Rejected(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("50.00")}, nil)
	// Buying power 100, required 150.
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 100},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Size:             ptrInt64(3),
	})

	// Rejection is a normal terminal outcome, not an error.
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejected, order.Status)
	assert.Equal(t, int64(3), order.Size)
	assert.True(t, dec("50.00").Equal(order.Price))
	orderStore.AssertNumberOfCalls(t, "Save", 1)
}

func TestSubmit_MarketSell_InsufficientHoldings_Rejected(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("50.00")}, nil)
	// Net holdings 5, trying to sell 10. Another instrument's holdings must
	// not count.
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 47, Side: models.SideBuy, Status: models.StatusFilled, Price: dec("40.00"), Size: 5},
		{UserID: 1, InstrumentID: 48, Side: models.SideBuy, Status: models.StatusFilled, Price: dec("40.00"), Size: 100},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideSell,
		Size:             ptrInt64(10),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejected, order.Status)
	orderStore.AssertNumberOfCalls(t, "Save", 1)
}

func TestSubmit_LimitBuy_New(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	// Buying power 1000, required 500.
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 1000},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeLimit,
		Side:             models.SideBuy,
		Size:             ptrInt64(10),
		Price:            ptrDec("50.00"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusNew, order.Status)
	assert.True(t, dec("50.00").Equal(order.Price))
	// No LIMIT order may reach the market-data store.
	marketData.AssertNotCalled(t, "LatestByInstrument", mock.Anything, mock.Anything)
	orderStore.AssertNumberOfCalls(t, "Save", 1)
}

func TestSubmit_AmountTooSmall_NothingPersisted(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("100.00")}, nil)

	_, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Amount:           ptrDec("90.00"), // floor(90/100) = 0 shares
	})

	var validationErr *apperr.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "amount too small")
	orderStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmit_PriceRoundsHalfUp(t *testing.T) {
	svc, users, instruments, marketData, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	marketData.On("LatestByInstrument", mock.Anything, uint(47)).
		Return(models.MarketData{InstrumentID: 47, Close: dec("10.005")}, nil)
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 1000},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Size:             ptrInt64(1),
	})

	assert.NoError(t, err)
	assert.Equal(t, "10.01", order.Price.StringFixed(2))
}

func TestSubmit_UserNotFound_Propagates(t *testing.T) {
	svc, users, _, _, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(99)).
		Return(models.User{}, apperr.NotFound("user", uint(99)))

	_, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           99,
		Type:             models.TypeMarket,
		Side:             models.SideBuy,
		Size:             ptrInt64(1),
	})

	var notFoundErr *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
	orderStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmit_SaveFailure_Propagates(t *testing.T) {
	svc, users, instruments, _, orderStore := setupTest()

	users.On("Get", mock.Anything, uint(1)).Return(testUser, nil)
	instruments.On("GetByTicker", mock.Anything, "PAMP").Return(testInstrument, nil)
	orderStore.On("FindFilledByUser", mock.Anything, uint(1)).Return([]models.Order{
		{UserID: 1, InstrumentID: 66, Side: models.SideCashIn, Status: models.StatusFilled, Price: dec("1.00"), Size: 1000},
	}, nil)
	orderStore.On("Save", mock.Anything, mock.AnythingOfType("*models.Order")).
		Return(errors.New("disk full"))

	_, err := svc.Submit(context.Background(), CreateRequest{
		InstrumentTicker: "PAMP",
		UserID:           1,
		Type:             models.TypeLimit,
		Side:             models.SideBuy,
		Size:             ptrInt64(1),
		Price:            ptrDec("10.00"),
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestValidateRequest(t *testing.T) {
	valid := func() CreateRequest {
		return CreateRequest{
			InstrumentTicker: "PAMP",
			UserID:           1,
			Type:             models.TypeMarket,
			Side:             models.SideBuy,
			Size:             ptrInt64(1),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		message string
	}{
		{"blank ticker", func(r *CreateRequest) { r.InstrumentTicker = "  " }, "instrument ticker"},
		{"missing user", func(r *CreateRequest) { r.UserID = 0 }, "user id"},
		{"missing type", func(r *CreateRequest) { r.Type = "" }, "type is required"},
		{"missing side", func(r *CreateRequest) { r.Side = "" }, "side is required"},
		{"cash in side", func(r *CreateRequest) { r.Side = models.SideCashIn }, "not supported"},
		{"cash out side", func(r *CreateRequest) { r.Side = models.SideCashOut }, "not supported"},
		{"market with price", func(r *CreateRequest) { r.Price = ptrDec("10.00") }, "omitted for MARKET"},
		{"limit without price", func(r *CreateRequest) {
			r.Type = models.TypeLimit
			r.Price = nil
		}, "price must be > 0 for LIMIT"},
		{"limit with zero price", func(r *CreateRequest) {
			r.Type = models.TypeLimit
			r.Price = ptrDec("0")
		}, "price must be > 0 for LIMIT"},
		{"both size and amount", func(r *CreateRequest) { r.Amount = ptrDec("100") }, "exactly one of size or amount"},
		{"neither size nor amount", func(r *CreateRequest) { r.Size = nil }, "exactly one of size or amount"},
		{"non-positive size", func(r *CreateRequest) { r.Size = ptrInt64(0) }, "exactly one of size or amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := validateRequest(req)
			var validationErr *apperr.ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	t.Run("valid market by size", func(t *testing.T) {
		req := valid()
		assert.NoError(t, validateRequest(req))
	})

	t.Run("valid market by amount", func(t *testing.T) {
		req := valid()
		req.Size = nil
		req.Amount = ptrDec("100")
		assert.NoError(t, validateRequest(req))
	})
}
