package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	toncenterMainnetURL = "https://toncenter.com/api/v2"
	toncenterTestnetURL = "https://testnet.toncenter.com/api/v2"

	toncenterAPIKeyHeader = "X-API-Key"
)

// Toncenter is a Client backed by the Toncenter V2 HTTP API.
type Toncenter struct {
	network Network
	api     *httpAPI
}

var _ Client = (*Toncenter)(nil)

// NewToncenter creates a Toncenter client. An empty apiKey is allowed but
// subject to the public rate limits.
func NewToncenter(network Network, apiKey string, opts ...Option) *Toncenter {
	base := toncenterMainnetURL
	if network == Testnet {
		base = toncenterTestnetURL
	}
	if apiKey != "" {
		opts = append(opts, WithHeader(toncenterAPIKeyHeader, apiKey))
	}
	return &Toncenter{
		network: network,
		api:     newHTTPAPI(base, opts...),
	}
}

// newToncenterCompatible backs the QuickNode and Tatum clients, which
// speak the same wire format against their own gateways.
func newToncenterCompatible(network Network, baseURL string, opts ...Option) *Toncenter {
	return &Toncenter{
		network: network,
		api:     newHTTPAPI(baseURL, opts...),
	}
}

// Network returns the network this client was created for.
func (c *Toncenter) Network() Network { return c.network }

type toncenterEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

func (c *Toncenter) unwrap(env *toncenterEnvelope, out any) error {
	if !env.OK {
		return &ResponseError{Code: env.Code, Message: env.Error, Endpoint: c.api.base}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}

func (c *Toncenter) SendMessage(ctx context.Context, boc []byte) error {
	var env toncenterEnvelope
	err := c.api.postJSON(ctx, "/sendBoc", map[string]string{
		"boc": base64.StdEncoding.EncodeToString(boc),
	}, &env)
	if err != nil {
		return err
	}
	return c.unwrap(&env, nil)
}

type toncenterRunResult struct {
	ExitCode int64             `json:"exit_code"`
	Stack    []json.RawMessage `json:"stack"`
}

func (c *Toncenter) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error) {
	norm, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}
	stack, err := encodeStack(norm)
	if err != nil {
		return nil, err
	}

	var env toncenterEnvelope
	err = c.api.postJSON(ctx, "/runGetMethod", map[string]any{
		"address": addr.String(),
		"method":  method,
		"stack":   stack,
	}, &env)
	if err != nil {
		return nil, err
	}

	var res toncenterRunResult
	if err := c.unwrap(&env, &res); err != nil {
		return nil, err
	}
	if res.ExitCode != 0 && res.ExitCode != 1 {
		return nil, &ExitCodeError{Method: method, Code: res.ExitCode}
	}

	items, err := decodeStack(res.Stack)
	if err != nil {
		return nil, err
	}
	return NewResult(items), nil
}

type toncenterTxID struct {
	LT   string `json:"lt"`
	Hash string `json:"hash"`
}

type toncenterAccountState struct {
	Balance           json.Number    `json:"balance"`
	State             string         `json:"state"`
	Code              string         `json:"code"`
	Data              string         `json:"data"`
	LastTransactionID *toncenterTxID `json:"last_transaction_id"`
}

func (c *Toncenter) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	var env toncenterEnvelope
	err := c.api.getJSON(ctx, "/getAddressInformation", url.Values{
		"address": {addr.String()},
	}, &env)
	if err != nil {
		return nil, err
	}

	var state toncenterAccountState
	if err := c.unwrap(&env, &state); err != nil {
		return nil, err
	}

	acc := &Account{
		Address: addr,
		Status:  normalizeAccountStatus(state.State),
	}
	balance, err := strconv.ParseUint(state.Balance.String(), 10, 64)
	if err == nil {
		acc.Balance = tlb.FromNanoTONU(balance)
	}
	if state.Code != "" {
		if acc.Code, err = cellFromBase64(state.Code); err != nil {
			return nil, fmt.Errorf("client: account code: %w", err)
		}
	}
	if state.Data != "" {
		if acc.Data, err = cellFromBase64(state.Data); err != nil {
			return nil, fmt.Errorf("client: account data: %w", err)
		}
	}
	if id := state.LastTransactionID; id != nil {
		acc.LastLT, _ = strconv.ParseUint(id.LT, 10, 64)
		acc.LastHash, _ = base64.StdEncoding.DecodeString(id.Hash)
	}
	return acc, nil
}

type toncenterTransaction struct {
	TransactionID toncenterTxID `json:"transaction_id"`
	UTime         uint32        `json:"utime"`
	Data          string        `json:"data"`
}

func (c *Toncenter) GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error) {
	query := url.Values{
		"address": {addr.String()},
		"limit":   {strconv.Itoa(limit)},
	}
	if lt > 0 {
		query.Set("lt", strconv.FormatUint(lt, 10))
	}
	if len(hash) > 0 {
		query.Set("hash", base64.StdEncoding.EncodeToString(hash))
	}

	var env toncenterEnvelope
	if err := c.api.getJSON(ctx, "/getTransactions", query, &env); err != nil {
		return nil, err
	}

	var raw []toncenterTransaction
	if err := c.unwrap(&env, &raw); err != nil {
		return nil, err
	}

	txs := make([]*Transaction, 0, len(raw))
	for _, item := range raw {
		tx := &Transaction{Now: item.UTime}
		tx.LT, _ = strconv.ParseUint(item.TransactionID.LT, 10, 64)
		tx.Hash, _ = base64.StdEncoding.DecodeString(item.TransactionID.Hash)

		if item.Data != "" {
			c, err := cellFromBase64(item.Data)
			if err != nil {
				return nil, fmt.Errorf("client: transaction %d: %w", tx.LT, err)
			}
			var parsed tlb.Transaction
			if err := tlb.LoadFromCell(&parsed, c.BeginParse()); err == nil {
				tx.Raw = &parsed
			}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

type toncenterBlockID struct {
	Workchain int32       `json:"workchain"`
	Shard     json.Number `json:"shard"`
	Seqno     uint32      `json:"seqno"`
	RootHash  string      `json:"root_hash"`
	FileHash  string      `json:"file_hash"`
}

type toncenterMasterchainInfo struct {
	Last *toncenterBlockID `json:"last"`
}

func (c *Toncenter) GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error) {
	var env toncenterEnvelope
	if err := c.api.getJSON(ctx, "/getMasterchainInfo", nil, &env); err != nil {
		return nil, err
	}

	var res toncenterMasterchainInfo
	if err := c.unwrap(&env, &res); err != nil {
		return nil, err
	}
	if res.Last == nil {
		return nil, ErrNotFound
	}

	info := &MasterchainInfo{
		Workchain: res.Last.Workchain,
		Seqno:     res.Last.Seqno,
	}
	info.Shard, _ = strconv.ParseInt(res.Last.Shard.String(), 10, 64)
	info.RootHash, _ = base64.StdEncoding.DecodeString(res.Last.RootHash)
	info.FileHash, _ = base64.StdEncoding.DecodeString(res.Last.FileHash)
	return info, nil
}

type toncenterConfigParam struct {
	Config *stackCellValue `json:"config"`
}

func (c *Toncenter) GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error) {
	var env toncenterEnvelope
	err := c.api.getJSON(ctx, "/getConfigParam", url.Values{
		"config_id": {strconv.FormatInt(int64(id), 10)},
	}, &env)
	if err != nil {
		return nil, err
	}

	var res toncenterConfigParam
	if err := c.unwrap(&env, &res); err != nil {
		return nil, err
	}
	if res.Config == nil || res.Config.Bytes == "" {
		return nil, ErrNotFound
	}
	return cellFromBase64(res.Config.Bytes)
}

func (c *Toncenter) Close() error { return nil }

func cellFromBase64(s string) (*cell.Cell, error) {
	boc, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return cell.FromBOC(boc)
}

func normalizeAccountStatus(s string) string {
	switch s {
	case "uninit", "uninitialized":
		return "uninitialized"
	case "":
		return "nonexist"
	default:
		return s
	}
}
