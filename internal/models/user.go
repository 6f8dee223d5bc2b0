package models

// User is a brokerage account holder.
type User struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Email         string `gorm:"uniqueIndex" json:"email"`
	AccountNumber string `json:"accountNumber"`
}
