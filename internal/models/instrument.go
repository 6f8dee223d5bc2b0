package models

// InstrumentType separates tradable stocks from the synthetic cash instrument.
type InstrumentType string

const (
	InstrumentStock    InstrumentType = "ACCIONES"
	InstrumentCurrency InstrumentType = "MONEDA"
)

// Instrument is a tradable security or the cash instrument.
type Instrument struct {
	ID     uint           `gorm:"primaryKey" json:"id"`
	Ticker string         `gorm:"uniqueIndex" json:"ticker"`
	Name   string         `json:"name"`
	Type   InstrumentType `json:"type"`
}
