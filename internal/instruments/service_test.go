package instruments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"broker-backend-go/internal/apperr"
	"broker-backend-go/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Search(ctx context.Context, query string, limit int) ([]models.Instrument, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]models.Instrument), args.Error(1)
}

func (m *MockStore) GetByTicker(ctx context.Context, ticker string) (models.Instrument, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(models.Instrument), args.Error(1)
}

func setupTest() (*Service, *MockStore) {
	store := new(MockStore)
	svc := NewService(zap.NewNop(), store, 10, 100, 3*time.Minute)
	return svc, store
}

func TestSearch_ShortQueryReturnsEmpty(t *testing.T) {
	svc, store := setupTest()

	for _, q := range []string{"", "ab", "  a  ", "  pa "} {
		results, err := svc.Search(context.Background(), q)
		assert.NoError(t, err)
		assert.Empty(t, results)
	}
	store.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_MinLengthCountsRunesNotBytes(t *testing.T) {
	svc, store := setupTest()

	// Two characters, four bytes: still below the minimum.
	results, err := svc.Search(context.Background(), "ñé")
	assert.NoError(t, err)
	assert.Empty(t, results)
	store.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)

	store.On("Search", mock.Anything, "ñéa", 10).
		Return([]models.Instrument{{ID: 47, Ticker: "PAMP"}}, nil)
	results, err = svc.Search(context.Background(), "ñéa")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_TrimsBeforeSearching(t *testing.T) {
	svc, store := setupTest()

	expected := []models.Instrument{{ID: 47, Ticker: "PAMP"}}
	store.On("Search", mock.Anything, "pam", 10).Return(expected, nil)

	results, err := svc.Search(context.Background(), "  pam  ")

	assert.NoError(t, err)
	assert.Equal(t, expected, results)
	store.AssertExpectations(t)
}

func TestSearch_CachesPerNormalizedQuery(t *testing.T) {
	svc, store := setupTest()

	expected := []models.Instrument{{ID: 47, Ticker: "PAMP"}}
	store.On("Search", mock.Anything, mock.Anything, 10).Return(expected, nil)

	// Same query with different casing shares one cache key.
	first, err := svc.Search(context.Background(), "PAM")
	assert.NoError(t, err)
	second, err := svc.Search(context.Background(), "pam")
	assert.NoError(t, err)

	assert.Equal(t, expected, first)
	assert.Equal(t, expected, second)
	store.AssertNumberOfCalls(t, "Search", 1)
}

func TestSearch_StoreErrorPropagates(t *testing.T) {
	svc, store := setupTest()

	failing := store.On("Search", mock.Anything, "pam", 10).
		Return([]models.Instrument{}, assert.AnError)

	_, err := svc.Search(context.Background(), "pam")
	assert.Error(t, err)

	// The failed load must not be cached.
	failing.Unset()
	store.On("Search", mock.Anything, "pam", 10).
		Return([]models.Instrument{{ID: 47, Ticker: "PAMP"}}, nil)
	results, err := svc.Search(context.Background(), "pam")
	assert.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetByTicker_NotFoundPropagates(t *testing.T) {
	svc, store := setupTest()

	store.On("GetByTicker", mock.Anything, "NOPE").
		Return(models.Instrument{}, apperr.NotFound("instrument", "NOPE"))

	_, err := svc.GetByTicker(context.Background(), "NOPE")

	var notFoundErr *apperr.NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}
