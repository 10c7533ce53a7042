// Package tonconnect implements the dapp side of the TonConnect
// protocol over HTTP SSE bridges: wallet discovery, the connect
// handshake with optional ton_proof, transaction requests and session
// persistence.
package tonconnect

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// TonConnect manages one Connector per user on top of shared storage
// and a shared wallets catalogue.
type TonConnect struct {
	log         zerolog.Logger
	storage     Storage
	manifestURL string
	redirectURL string
	apiTokens   map[string]string
	wallets     *WalletsLoader

	onDisconnect func(userID string)

	mu         sync.Mutex
	connectors map[string]*Connector
}

// ManagerOption configures a TonConnect manager.
type ManagerOption func(*TonConnect)

// WithAPITokens sets bridge API tokens keyed by bridge name
// substring, e.g. "tonapi".
func WithAPITokens(tokens map[string]string) ManagerOption {
	return func(tc *TonConnect) { tc.apiTokens = tokens }
}

// WithRedirect sets the default post-connect return URL. The protocol
// default is "back".
func WithRedirect(u string) ManagerOption {
	return func(tc *TonConnect) { tc.redirectURL = u }
}

// WithWallets replaces the default wallets loader.
func WithWallets(l *WalletsLoader) ManagerOption {
	return func(tc *TonConnect) { tc.wallets = l }
}

// WithLogger sets the logger used by connectors and bridges.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(tc *TonConnect) { tc.log = log }
}

// OnDisconnect registers a callback for wallet-initiated disconnects
// and dead bridges.
func OnDisconnect(fn func(userID string)) ManagerOption {
	return func(tc *TonConnect) { tc.onDisconnect = fn }
}

// New builds a TonConnect manager for the dapp identified by
// manifestURL.
func New(storage Storage, manifestURL string, opts ...ManagerOption) *TonConnect {
	tc := &TonConnect{
		log:         zerolog.Nop(),
		storage:     storage,
		manifestURL: manifestURL,
		redirectURL: "back",
		connectors:  make(map[string]*Connector),
	}
	for _, fn := range opts {
		fn(tc)
	}
	if tc.wallets == nil {
		tc.wallets = NewWalletsLoader()
	}
	return tc
}

// Wallets returns the filtered wallet apps catalogue.
func (tc *TonConnect) Wallets(ctx context.Context) ([]WalletApp, error) {
	return tc.wallets.Load(ctx)
}

// WalletApp returns one catalogue entry by app_name.
func (tc *TonConnect) WalletApp(ctx context.Context, appName string) (*WalletApp, error) {
	return tc.wallets.FindByAppName(ctx, appName)
}

// Connector returns the connector for userID, creating it on first
// use.
func (tc *TonConnect) Connector(userID string) *Connector {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if c, ok := tc.connectors[userID]; ok {
		return c
	}
	c := newConnector(tc.log, userID, tc.storage, tc.manifestURL, tc.redirectURL, tc.apiTokens, tc.onDisconnect)
	tc.connectors[userID] = c
	return c
}

// RestoreAll rebuilds connectors for the given users from storage,
// skipping users without a stored connection.
func (tc *TonConnect) RestoreAll(ctx context.Context, userIDs []string) error {
	for _, id := range userIDs {
		c := tc.Connector(id)
		if err := c.RestoreConnection(ctx); err != nil {
			if err == ErrNoConnection {
				continue
			}
			return err
		}
	}
	return nil
}

// Close pauses every connector's bridge listener. Stored sessions
// survive for a later RestoreConnection.
func (tc *TonConnect) Close() {
	tc.mu.Lock()
	connectors := make([]*Connector, 0, len(tc.connectors))
	for _, c := range tc.connectors {
		connectors = append(connectors, c)
	}
	tc.mu.Unlock()
	for _, c := range connectors {
		c.Pause()
	}
}
