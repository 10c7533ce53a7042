// Package jetton implements TEP-74 fungible token interaction: master
// and wallet contract reads plus transfer, burn and admin payloads.
package jetton

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"

	"tonkit/client"
	"tonkit/internal/tep64"
)

// Content is TEP-64 token metadata.
type Content = tep64.Content

// TEP-74 / minter operation codes.
const (
	OpTransfer         = 0x0f8a7ea5
	OpInternalTransfer = 0x178d4519
	OpBurn             = 0x595f07bc
	OpExcesses         = 0xd53276db
	OpMint             = 0x642b7d07
	OpChangeAdmin      = 0x3
	OpChangeContent    = 0x4
)

// Master is a jetton minter contract handle.
type Master struct {
	client client.Client
	addr   *address.Address
}

// NewMaster binds a master contract at addr to a provider.
func NewMaster(c client.Client, addr *address.Address) *Master {
	return &Master{client: c, addr: addr}
}

// Address returns the master contract address.
func (m *Master) Address() *address.Address { return m.addr }

// Data is the on-chain state reported by get_jetton_data.
type Data struct {
	TotalSupply *big.Int
	Mintable    bool
	Admin       *address.Address
	Content     *Content
}

// GetData reads the minter state.
func (m *Master) GetData(ctx context.Context) (*Data, error) {
	res, err := m.client.RunGetMethod(ctx, m.addr, "get_jetton_data")
	if err != nil {
		return nil, fmt.Errorf("jetton: get_jetton_data: %w", err)
	}

	supply, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	mintable, err := res.Int(1)
	if err != nil {
		return nil, err
	}
	admin, err := res.Address(2)
	if err != nil {
		// The admin slice is addr_none once ownership is revoked.
		admin = nil
	}
	content, err := res.Cell(3)
	if err != nil {
		return nil, err
	}

	return &Data{
		TotalSupply: supply,
		Mintable:    mintable.Sign() != 0,
		Admin:       admin,
		Content:     tep64.Parse(content),
	}, nil
}

// GetWalletAddress resolves the jetton wallet owned by owner.
func (m *Master) GetWalletAddress(ctx context.Context, owner *address.Address) (*address.Address, error) {
	res, err := m.client.RunGetMethod(ctx, m.addr, "get_wallet_address", owner)
	if err != nil {
		return nil, fmt.Errorf("jetton: get_wallet_address: %w", err)
	}
	return res.Address(0)
}

// GetWallet resolves and wraps the jetton wallet owned by owner.
func (m *Master) GetWallet(ctx context.Context, owner *address.Address) (*Wallet, error) {
	addr, err := m.GetWalletAddress(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &Wallet{client: m.client, addr: addr}, nil
}

// Wallet is a jetton wallet contract handle.
type Wallet struct {
	client client.Client
	addr   *address.Address
}

// NewWallet binds a jetton wallet at addr to a provider.
func NewWallet(c client.Client, addr *address.Address) *Wallet {
	return &Wallet{client: c, addr: addr}
}

// Address returns the jetton wallet contract address.
func (w *Wallet) Address() *address.Address { return w.addr }

// WalletData is the state reported by get_wallet_data.
type WalletData struct {
	Balance *big.Int
	Owner   *address.Address
	Master  *address.Address
}

// GetData reads the jetton wallet state. An undeployed wallet reports a
// zero balance.
func (w *Wallet) GetData(ctx context.Context) (*WalletData, error) {
	res, err := w.client.RunGetMethod(ctx, w.addr, "get_wallet_data")
	if err != nil {
		var exitErr *client.ExitCodeError
		if errors.As(err, &exitErr) {
			return &WalletData{Balance: big.NewInt(0)}, nil
		}
		return nil, fmt.Errorf("jetton: get_wallet_data: %w", err)
	}

	balance, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	owner, err := res.Address(1)
	if err != nil {
		return nil, err
	}
	master, err := res.Address(2)
	if err != nil {
		return nil, err
	}
	return &WalletData{Balance: balance, Owner: owner, Master: master}, nil
}

// GetBalance reads just the jetton balance.
func (w *Wallet) GetBalance(ctx context.Context) (*big.Int, error) {
	data, err := w.GetData(ctx)
	if err != nil {
		return nil, err
	}
	return data.Balance, nil
}
