package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"broker-backend-go/internal/models"
)

// CashTicker identifies the synthetic cash instrument used by
// CASH_IN/CASH_OUT ledger rows.
const CashTicker = "ARS"

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema and seeds the reference data the services
// depend on (the cash instrument).
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Instrument{},
		&models.MarketData{},
		&models.Order{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	cash := models.Instrument{
		Ticker: CashTicker,
		Name:   "PESOS",
		Type:   models.InstrumentCurrency,
	}
	if err := db.FirstOrCreate(&cash, models.Instrument{Ticker: CashTicker}).Error; err != nil {
		return fmt.Errorf("failed to seed cash instrument: %w", err)
	}

	return nil
}
