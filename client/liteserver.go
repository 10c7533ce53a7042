package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	// MainnetConfigURL is the public global liteserver config.
	MainnetConfigURL = "https://ton-blockchain.github.io/global.config.json"
	// TestnetConfigURL is the public testnet liteserver config.
	TestnetConfigURL = "https://ton-blockchain.github.io/testnet-global.config.json"
)

// Liteserver is a Client speaking the native ADNL liteserver protocol
// through tonutils-go. It is the only client able to back wallet
// operations directly, since those need seqno+send in one API.
type Liteserver struct {
	network Network
	pool    *liteclient.ConnectionPool
	api     ton.APIClientWrapped
}

var _ Client = (*Liteserver)(nil)

// NewLiteserver connects to the liteservers listed in the global config
// at configURL (use MainnetConfigURL / TestnetConfigURL for the public
// networks).
func NewLiteserver(ctx context.Context, network Network, configURL string) (*Liteserver, error) {
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
		return nil, fmt.Errorf("client: fetch liteserver config: %w", err)
	}

	api := ton.NewAPIClient(pool, ton.ProofCheckPolicyFast).WithRetry()
	return &Liteserver{
		network: network,
		pool:    pool,
		api:     api,
	}, nil
}

// Network returns the network this client was created for.
func (c *Liteserver) Network() Network { return c.network }

// API exposes the underlying tonutils-go API client for wallet
// operations and other native flows.
func (c *Liteserver) API() ton.APIClientWrapped { return c.api }

func (c *Liteserver) SendMessage(ctx context.Context, boc []byte) error {
	root, err := cell.FromBOC(boc)
	if err != nil {
		return fmt.Errorf("client: parse external message: %w", err)
	}

	var msg tlb.ExternalMessage
	if err := tlb.LoadFromCell(&msg, root.BeginParse()); err != nil {
		return fmt.Errorf("client: load external message: %w", err)
	}
	return c.api.SendExternalMessage(ctx, &msg)
}

func (c *Liteserver) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error) {
	norm, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: masterchain info: %w", err)
	}

	res, err := c.api.RunGetMethod(ctx, block, addr, method, norm...)
	if err != nil {
		var execErr ton.ContractExecError
		if errors.As(err, &execErr) {
			return nil, &ExitCodeError{Method: method, Code: int64(execErr.Code)}
		}
		return nil, err
	}
	return NewResult(res.AsTuple()), nil
}

func (c *Liteserver) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: masterchain info: %w", err)
	}

	raw, err := c.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, err
	}

	acc := &Account{Address: addr, Status: "nonexist"}
	if raw == nil || raw.State == nil {
		return acc, nil
	}

	acc.Status = string(raw.State.Status)
	acc.Balance = raw.State.Balance
	acc.Code = raw.Code
	acc.Data = raw.Data
	acc.LastLT = raw.LastTxLT
	acc.LastHash = raw.LastTxHash
	return acc, nil
}

func (c *Liteserver) GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error) {
	if lt == 0 || len(hash) == 0 {
		acc, err := c.GetAccount(ctx, addr)
		if err != nil {
			return nil, err
		}
		if acc.LastLT == 0 {
			return nil, nil
		}
		lt, hash = acc.LastLT, acc.LastHash
	}

	raw, err := c.api.ListTransactions(ctx, addr, uint32(limit), lt, hash)
	if err != nil {
		return nil, err
	}

	txs := make([]*Transaction, 0, len(raw))
	// ListTransactions returns oldest first; newest first is the
	// contract shared with the HTTP providers.
	for i := len(raw) - 1; i >= 0; i-- {
		tx := raw[i]
		txs = append(txs, &Transaction{
			LT:   tx.LT,
			Hash: tx.Hash,
			Now:  tx.Now,
			Raw:  tx,
		})
	}
	return txs, nil
}

func (c *Liteserver) GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: masterchain info: %w", err)
	}
	return &MasterchainInfo{
		Workchain: block.Workchain,
		Shard:     block.Shard,
		Seqno:     block.SeqNo,
		RootHash:  block.RootHash,
		FileHash:  block.FileHash,
	}, nil
}

func (c *Liteserver) GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: masterchain info: %w", err)
	}

	cfg, err := c.api.GetBlockchainConfig(ctx, block, id)
	if err != nil {
		return nil, err
	}
	param := cfg.Get(id)
	if param == nil {
		return nil, ErrNotFound
	}
	return param, nil
}

func (c *Liteserver) Close() error {
	c.pool.Stop()
	return nil
}
