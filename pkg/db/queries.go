package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUserIDRequired = errors.New("user id required")
)

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up for login.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateAccount stores venue credentials. Key fields are expected to be
// encrypted by the caller before they reach the ledger.
func (d *Database) CreateAccount(ctx context.Context, a Account) error {
	if a.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, exchange, api_key, api_secret, passphrase, is_testnet, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		a.ID, a.UserID, a.Name, a.Exchange, a.APIKey, a.APISecret, a.Passphrase, a.IsTestnet)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccountCredentials loads one active account's credentials.
func (d *Database) GetAccountCredentials(ctx context.Context, accountID string) (*Account, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, name, exchange, api_key, api_secret, passphrase, is_testnet, is_active, created_at
		FROM accounts WHERE id = ? AND is_active = 1`, accountID)
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Exchange, &a.APIKey, &a.APISecret,
		&a.Passphrase, &a.IsTestnet, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetAccountsByUser lists a user's active accounts.
func (d *Database) GetAccountsByUser(ctx context.Context, userID string) ([]Account, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, name, exchange, api_key, api_secret, passphrase, is_testnet, is_active, created_at
		FROM accounts WHERE user_id = ? AND is_active = 1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Exchange, &a.APIKey, &a.APISecret,
			&a.Passphrase, &a.IsTestnet, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeactivateAccount soft-deletes an account; the caller is expected to
// invalidate any live connector built from it.
func (d *Database) DeactivateAccount(ctx context.Context, userID, accountID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	res, err := d.DB.ExecContext(ctx,
		`UPDATE accounts SET is_active = 0 WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateStrategy inserts a strategy row.
func (d *Database) CreateStrategy(ctx context.Context, s Strategy) error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, account_id, symbol, timeframe, bb_period, bb_deviation, ma_period, entry_amount, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.AccountID, s.Symbol, s.Timeframe, s.BBPeriod, s.BBDeviation, s.MAPeriod, s.EntryAmount, s.IsActive)
	if err != nil {
		return fmt.Errorf("create strategy: %w", err)
	}
	return nil
}

// GetStrategy loads one strategy owned by userID.
func (d *Database) GetStrategy(ctx context.Context, userID, strategyID string) (*Strategy, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, symbol, timeframe, bb_period, bb_deviation, ma_period, entry_amount, is_active, created_at
		FROM strategies WHERE id = ? AND user_id = ?`, strategyID, userID)
	var s Strategy
	err := row.Scan(&s.ID, &s.UserID, &s.AccountID, &s.Symbol, &s.Timeframe,
		&s.BBPeriod, &s.BBDeviation, &s.MAPeriod, &s.EntryAmount, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get strategy: %w", err)
	}
	return &s, nil
}

// GetActiveStrategies lists a user's active strategies for evaluation.
func (d *Database) GetActiveStrategies(ctx context.Context, userID string) ([]Strategy, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, account_id, symbol, timeframe, bb_period, bb_deviation, ma_period, entry_amount, is_active, created_at
		FROM strategies WHERE user_id = ? AND is_active = 1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	var out []Strategy
	for rows.Next() {
		var s Strategy
		if err := rows.Scan(&s.ID, &s.UserID, &s.AccountID, &s.Symbol, &s.Timeframe,
			&s.BBPeriod, &s.BBDeviation, &s.MAPeriod, &s.EntryAmount, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordTrade persists a trade intent issued by the runner.
func (d *Database) RecordTrade(ctx context.Context, t TradeIntent) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trade_intents (id, strategy_id, symbol, side, amount, price, provider_order_id, status, simulated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StrategyID, t.Symbol, t.Side, t.Amount, t.Price, t.ProviderOrderID, t.Status, t.Simulated)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// UpdateTradeStatus moves an intent through its lifecycle.
func (d *Database) UpdateTradeStatus(ctx context.Context, intentID, status string) error {
	res, err := d.DB.ExecContext(ctx,
		`UPDATE trade_intents SET status = ? WHERE id = ?`, status, intentID)
	if err != nil {
		return fmt.Errorf("update trade status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTradesByUser lists intents across the user's strategies, newest first.
func (d *Database) GetTradesByUser(ctx context.Context, userID string, limit int) ([]TradeIntent, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT ti.id, ti.strategy_id, ti.symbol, ti.side, ti.amount, ti.price, ti.provider_order_id, ti.status, ti.simulated, ti.created_at
		FROM trade_intents ti
		JOIN strategies s ON ti.strategy_id = s.id
		WHERE s.user_id = ?
		ORDER BY ti.created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeIntent
	for rows.Next() {
		var t TradeIntent
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.Symbol, &t.Side, &t.Amount, &t.Price,
			&t.ProviderOrderID, &t.Status, &t.Simulated, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
