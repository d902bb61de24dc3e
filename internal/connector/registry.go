package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"exchange-core/internal/events"
	"exchange-core/pkg/config"
	"exchange-core/pkg/crypto"
	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"
	"exchange-core/pkg/exchanges/okx"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Factory builds a connector for an account once its credentials have been
// decrypted. Injected in tests.
type Factory func(acct db.Account, creds okx.Credentials) (Connector, error)

// ModeChange is published on the event bus when a connector switches state.
type ModeChange struct {
	AccountID string `json:"account_id"`
	Testnet   bool   `json:"testnet"`
	From      Mode   `json:"from"`
	To        Mode   `json:"to"`
}

// Registry caches one connector per (account, network) pair. Construction is
// serialized per registry so concurrent callers share a single instance.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector

	database  *db.Database
	vault     *crypto.Vault
	cfg       *config.Config
	providers map[string]config.Provider
	bus       *events.Bus
	factory   Factory
}

// NewRegistry wires the default factory, which builds a REST client per the
// account's provider definition.
func NewRegistry(database *db.Database, vault *crypto.Vault, cfg *config.Config, providers map[string]config.Provider, bus *events.Bus) *Registry {
	r := &Registry{
		connectors: make(map[string]Connector),
		database:   database,
		vault:      vault,
		cfg:        cfg,
		providers:  providers,
		bus:        bus,
	}
	r.factory = r.buildLive
	return r
}

// SetFactory overrides connector construction. Test hook.
func (r *Registry) SetFactory(f Factory) { r.factory = f }

func key(accountID string, testnet bool) string {
	if testnet {
		return accountID + ":testnet"
	}
	return accountID + ":live"
}

// GetOrCreate returns the cached connector for the account, building it on
// first use. Ownership is checked against userID.
func (r *Registry) GetOrCreate(ctx context.Context, userID, accountID string) (Connector, error) {
	acct, err := r.loadAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	k := key(acct.ID, acct.IsTestnet)

	r.mu.RLock()
	if c, ok := r.connectors[k]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if c, ok := r.connectors[k]; ok {
		return c, nil
	}

	creds, err := r.decryptCredentials(acct)
	if err != nil {
		return nil, err
	}
	c, err := r.factory(*acct, creds)
	if err != nil {
		return nil, fmt.Errorf("build connector: %w", err)
	}
	r.connectors[k] = c
	return c, nil
}

// Invalidate drops the cached connector so the next access rebuilds it, e.g.
// after credentials are rotated.
func (r *Registry) Invalidate(accountID string, testnet bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connectors, key(accountID, testnet))
}

// InvalidateAll clears the cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors = make(map[string]Connector)
}

// BalanceResult is one account's outcome from a batch refresh.
type BalanceResult struct {
	AccountID string
	Balance   common.Balance
	Err       error
}

// RefreshBalances fetches balances for several accounts concurrently under a
// single deadline. Accounts that miss the deadline report a timeout error;
// the rest still return their balances.
func (r *Registry) RefreshBalances(ctx context.Context, userID string, accountIDs []string, budget time.Duration) map[string]BalanceResult {
	if budget <= 0 {
		budget = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	results := make(map[string]BalanceResult, len(accountIDs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range accountIDs {
		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			res := BalanceResult{AccountID: accountID}
			c, err := r.GetOrCreate(ctx, userID, accountID)
			if err != nil {
				res.Err = err
			} else {
				res.Balance, res.Err = c.FetchBalance(ctx)
			}
			if res.Err != nil && errors.Is(res.Err, context.DeadlineExceeded) {
				res.Err = common.NewTimeoutError("balance refresh exceeded the batch deadline")
			}
			mu.Lock()
			results[accountID] = res
			mu.Unlock()
			if res.Err == nil && r.bus != nil {
				r.bus.Publish(events.EventBalanceFetch, res)
			}
		}(id)
	}
	wg.Wait()
	return results
}

func (r *Registry) loadAccount(ctx context.Context, userID, accountID string) (*db.Account, error) {
	acct, err := r.database.GetAccountCredentials(ctx, accountID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

func (r *Registry) decryptCredentials(acct *db.Account) (okx.Credentials, error) {
	creds := okx.Credentials{
		APIKey:     acct.APIKey,
		APISecret:  acct.APISecret,
		Passphrase: acct.Passphrase,
	}
	if r.vault == nil {
		return creds, nil
	}
	var err error
	if crypto.IsEncrypted(creds.APIKey) {
		if creds.APIKey, err = r.vault.Decrypt(creds.APIKey); err != nil {
			return okx.Credentials{}, fmt.Errorf("decrypt api key: %w", err)
		}
	}
	if crypto.IsEncrypted(creds.APISecret) {
		if creds.APISecret, err = r.vault.Decrypt(creds.APISecret); err != nil {
			return okx.Credentials{}, fmt.Errorf("decrypt api secret: %w", err)
		}
	}
	if crypto.IsEncrypted(creds.Passphrase) {
		if creds.Passphrase, err = r.vault.Decrypt(creds.Passphrase); err != nil {
			return okx.Credentials{}, fmt.Errorf("decrypt passphrase: %w", err)
		}
	}
	return creds, nil
}

// buildLive is the default factory: a REST client configured from the
// account's provider entry, wrapped in a Live connector that publishes mode
// changes on the bus.
func (r *Registry) buildLive(acct db.Account, creds okx.Credentials) (Connector, error) {
	provider, ok := r.providers[acct.Exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, acct.Exchange)
	}

	tcfg := okx.TransportConfig{
		BaseURLs:        provider.BaseURLs,
		TimestampFormat: okx.TimestampFormat(provider.TimestampFormat),
		Testnet:         acct.IsTestnet,
	}
	if r.cfg != nil {
		tcfg.ProxyURL = r.cfg.ProxyURL
		tcfg.PublicTimeout = r.cfg.PublicTimeout
		tcfg.PrivateTimeout = r.cfg.PrivateTimeout
		tcfg.MaxAttempts = r.cfg.MaxAttempts
		tcfg.Backoff = r.cfg.RetryBackoff
	}

	client, err := okx.NewClient(tcfg, creds)
	if err != nil {
		return nil, err
	}

	onMode := func(from, to Mode) {
		if r.bus != nil {
			r.bus.Publish(events.EventConnectorMode, ModeChange{
				AccountID: acct.ID,
				Testnet:   acct.IsTestnet,
				From:      from,
				To:        to,
			})
		}
	}
	return NewLive(acct.ID, acct.IsTestnet, client, onMode), nil
}
