// Package store provides the gorm-backed persistence layer. Each store maps
// gorm.ErrRecordNotFound to the typed not-found errors the services and the
// HTTP layer understand.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"broker-backend-go/internal/apperr"
	"broker-backend-go/internal/models"
)

// Orders reads and appends the order ledger. Persisted orders are never
// updated in place.
type Orders struct {
	db *gorm.DB
}

// NewOrders creates an order store.
func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

// FindFilledByUser returns every FILLED order for the user, across all
// instruments and sides.
func (s *Orders) FindFilledByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusFilled).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load filled orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// Save appends one order row and fills in its assigned ID.
func (s *Orders) Save(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// Instruments looks up and searches instrument reference data.
type Instruments struct {
	db *gorm.DB
}

// NewInstruments creates an instrument store.
func NewInstruments(db *gorm.DB) *Instruments {
	return &Instruments{db: db}
}

// GetByTicker returns the instrument with the given ticker.
func (s *Instruments) GetByTicker(ctx context.Context, ticker string) (models.Instrument, error) {
	var instrument models.Instrument
	err := s.db.WithContext(ctx).Where("ticker = ?", ticker).First(&instrument).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Instrument{}, apperr.NotFound("instrument", ticker)
	}
	if err != nil {
		return models.Instrument{}, fmt.Errorf("failed to load instrument %s: %w", ticker, err)
	}
	return instrument, nil
}

// GetByID returns the instrument with the given ID.
func (s *Instruments) GetByID(ctx context.Context, id uint) (models.Instrument, error) {
	var instrument models.Instrument
	err := s.db.WithContext(ctx).First(&instrument, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Instrument{}, apperr.NotFound("instrument", id)
	}
	if err != nil {
		return models.Instrument{}, fmt.Errorf("failed to load instrument %d: %w", id, err)
	}
	return instrument, nil
}

// Search matches the query against ticker or name, case-insensitively,
// ordered by ticker and capped at limit rows.
func (s *Instruments) Search(ctx context.Context, query string, limit int) ([]models.Instrument, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var instruments []models.Instrument
	err := s.db.WithContext(ctx).
		Where("lower(ticker) LIKE ? OR lower(name) LIKE ?", pattern, pattern).
		Order("ticker").
		Limit(limit).
		Find(&instruments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search instruments for %q: %w", query, err)
	}
	return instruments, nil
}

// ListStocks returns every tradable (non-cash) instrument.
func (s *Instruments) ListStocks(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	err := s.db.WithContext(ctx).
		Where("type = ?", models.InstrumentStock).
		Find(&instruments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stock instruments: %w", err)
	}
	return instruments, nil
}

// MarketData reads and refreshes end-of-day bars.
type MarketData struct {
	db *gorm.DB
}

// NewMarketData creates a market-data store.
func NewMarketData(db *gorm.DB) *MarketData {
	return &MarketData{db: db}
}

// LatestByInstrument returns the most recent bar for the instrument.
func (s *MarketData) LatestByInstrument(ctx context.Context, instrumentID uint) (models.MarketData, error) {
	var md models.MarketData
	err := s.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("date DESC").
		First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.MarketData{}, apperr.NotFound("market data for instrument", instrumentID)
	}
	if err != nil {
		return models.MarketData{}, fmt.Errorf("failed to load market data for instrument %d: %w", instrumentID, err)
	}
	return md, nil
}

// Upsert writes one bar, replacing any existing row for the same
// instrument and date.
func (s *MarketData) Upsert(ctx context.Context, md *models.MarketData) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "date"}},
			UpdateAll: true,
		}).
		Create(md).Error
	if err != nil {
		return fmt.Errorf("failed to upsert market data for instrument %d: %w", md.InstrumentID, err)
	}
	return nil
}

// Users looks up account holders.
type Users struct {
	db *gorm.DB
}

// NewUsers creates a user store.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Get returns the user with the given ID.
func (s *Users) Get(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return user, nil
}
