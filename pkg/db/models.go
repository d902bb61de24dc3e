package db

import "time"

// User is an authenticated API user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Account holds one venue account's credentials. Key material is stored
// encrypted and decrypted only when a connector is constructed.
type Account struct {
	ID         string
	UserID     string
	Name       string
	Exchange   string
	APIKey     string
	APISecret  string
	Passphrase string
	IsTestnet  bool
	IsActive   bool
	CreatedAt  time.Time
}

// Strategy is one configured indicator strategy, consumed read-only by the
// runner.
type Strategy struct {
	ID          string
	UserID      string
	AccountID   string
	Symbol      string
	Timeframe   string
	BBPeriod    int
	BBDeviation float64
	MAPeriod    int
	EntryAmount float64
	IsActive    bool
	CreatedAt   time.Time
}

// TradeIntent is a strategy-issued order recorded in the ledger.
type TradeIntent struct {
	ID              string
	StrategyID      string
	Symbol          string
	Side            string
	Amount          float64
	Price           float64
	ProviderOrderID string
	Status          string // pending, filled, cancelled, failed
	Simulated       bool
	CreatedAt       time.Time
}
