package client

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	tonapiMainnetURL = "https://tonapi.io"
	tonapiTestnetURL = "https://testnet.tonapi.io"
)

// Tonapi is a Client backed by the tonapi.io v2 REST API.
type Tonapi struct {
	network Network
	api     *httpAPI
}

var _ Client = (*Tonapi)(nil)

// NewTonapi creates a Tonapi client. apiKey is the tonapi.io bearer token;
// empty means the public tier.
func NewTonapi(network Network, apiKey string, opts ...Option) *Tonapi {
	base := tonapiMainnetURL
	if network == Testnet {
		base = tonapiTestnetURL
	}
	if apiKey != "" {
		opts = append(opts, WithHeader("Authorization", "Bearer "+apiKey))
	}
	return &Tonapi{
		network: network,
		api:     newHTTPAPI(base, opts...),
	}
}

// Network returns the network this client was created for.
func (c *Tonapi) Network() Network { return c.network }

func (c *Tonapi) SendMessage(ctx context.Context, boc []byte) error {
	return c.api.postJSON(ctx, "/v2/blockchain/message", map[string]string{
		"boc": base64.StdEncoding.EncodeToString(boc),
	}, nil)
}

type tonapiStackItem struct {
	Type  string `json:"type"`
	Num   string `json:"num"`
	Cell  string `json:"cell"`
	Slice string `json:"slice"`
}

type tonapiRunResult struct {
	Success  bool              `json:"success"`
	ExitCode int64             `json:"exit_code"`
	Stack    []tonapiStackItem `json:"stack"`
}

func (c *Tonapi) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error) {
	norm, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for _, p := range norm {
		arg, err := tonapiEncodeArg(p)
		if err != nil {
			return nil, err
		}
		query.Add("args", arg)
	}

	path := fmt.Sprintf("/v2/blockchain/accounts/%s/methods/%s", addr.String(), url.PathEscape(method))
	var res tonapiRunResult
	if err := c.api.getJSON(ctx, path, query, &res); err != nil {
		return nil, err
	}
	if res.ExitCode != 0 && res.ExitCode != 1 {
		return nil, &ExitCodeError{Method: method, Code: res.ExitCode}
	}

	items := make([]any, 0, len(res.Stack))
	for i, item := range res.Stack {
		decoded, err := tonapiDecodeStackItem(item)
		if err != nil {
			return nil, fmt.Errorf("client: stack item %d: %w", i, err)
		}
		items = append(items, decoded)
	}
	return NewResult(items), nil
}

type tonapiAccount struct {
	Balance             int64  `json:"balance"`
	Status              string `json:"status"`
	Code                string `json:"code"`
	Data                string `json:"data"`
	LastTransactionLT   uint64 `json:"last_transaction_lt"`
	LastTransactionHash string `json:"last_transaction_hash"`
}

func (c *Tonapi) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	var raw tonapiAccount
	path := "/v2/blockchain/accounts/" + addr.String()
	if err := c.api.getJSON(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	acc := &Account{
		Address: addr,
		Status:  normalizeAccountStatus(raw.Status),
		Balance: tlb.FromNanoTONU(uint64(raw.Balance)),
		LastLT:  raw.LastTransactionLT,
	}
	var err error
	if raw.Code != "" {
		if acc.Code, err = cellFromAnyEncoding(raw.Code); err != nil {
			return nil, fmt.Errorf("client: account code: %w", err)
		}
	}
	if raw.Data != "" {
		if acc.Data, err = cellFromAnyEncoding(raw.Data); err != nil {
			return nil, fmt.Errorf("client: account data: %w", err)
		}
	}
	if raw.LastTransactionHash != "" {
		acc.LastHash, _ = hex.DecodeString(raw.LastTransactionHash)
	}
	return acc, nil
}

type tonapiTransaction struct {
	Hash  string `json:"hash"`
	LT    uint64 `json:"lt"`
	UTime uint32 `json:"utime"`
	Raw   string `json:"raw"`
}

type tonapiTransactions struct {
	Transactions []tonapiTransaction `json:"transactions"`
}

func (c *Tonapi) GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error) {
	query := url.Values{
		"limit":      {strconv.Itoa(limit)},
		"sort_order": {"desc"},
	}
	if lt > 0 {
		query.Set("before_lt", strconv.FormatUint(lt, 10))
	}

	var res tonapiTransactions
	path := "/v2/blockchain/accounts/" + addr.String() + "/transactions"
	if err := c.api.getJSON(ctx, path, query, &res); err != nil {
		return nil, err
	}

	txs := make([]*Transaction, 0, len(res.Transactions))
	for _, item := range res.Transactions {
		tx := &Transaction{LT: item.LT, Now: item.UTime}
		tx.Hash, _ = hex.DecodeString(item.Hash)

		if item.Raw != "" {
			if c, err := cellFromAnyEncoding(item.Raw); err == nil {
				var parsed tlb.Transaction
				if err := tlb.LoadFromCell(&parsed, c.BeginParse()); err == nil {
					tx.Raw = &parsed
				}
			}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

type tonapiBlock struct {
	WorkchainID int32  `json:"workchain_id"`
	Shard       string `json:"shard"`
	Seqno       uint32 `json:"seqno"`
	RootHash    string `json:"root_hash"`
	FileHash    string `json:"file_hash"`
}

func (c *Tonapi) GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error) {
	var res tonapiBlock
	if err := c.api.getJSON(ctx, "/v2/blockchain/masterchain-head", nil, &res); err != nil {
		return nil, err
	}

	info := &MasterchainInfo{
		Workchain: res.WorkchainID,
		Seqno:     res.Seqno,
	}
	// Shard comes back hex encoded.
	if shard, err := strconv.ParseUint(res.Shard, 16, 64); err == nil {
		info.Shard = int64(shard)
	}
	info.RootHash, _ = hex.DecodeString(res.RootHash)
	info.FileHash, _ = hex.DecodeString(res.FileHash)
	return info, nil
}

type tonapiRawConfig struct {
	Config string `json:"config"`
}

func (c *Tonapi) GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error) {
	var res tonapiRawConfig
	if err := c.api.getJSON(ctx, "/v2/blockchain/config/raw", nil, &res); err != nil {
		return nil, err
	}
	if res.Config == "" {
		return nil, ErrNotFound
	}
	root, err := cellFromAnyEncoding(res.Config)
	if err != nil {
		return nil, err
	}

	// The raw config is a hashmap of param id -> cell ref.
	dict, err := root.BeginParse().LoadDict(32)
	if err != nil {
		return nil, fmt.Errorf("client: parse config dict: %w", err)
	}
	val, err := dict.LoadValueByIntKey(big.NewInt(int64(id)))
	if err != nil {
		return nil, ErrNotFound
	}
	ref, err := val.LoadRef()
	if err != nil {
		return nil, fmt.Errorf("client: config param %d: %w", id, err)
	}
	return ref.ToCell()
}

func (c *Tonapi) Close() error { return nil }

func tonapiEncodeArg(p any) (string, error) {
	switch v := p.(type) {
	case *big.Int:
		return v.String(), nil
	case *cell.Cell:
		return hex.EncodeToString(v.ToBOC()), nil
	case *cell.Slice:
		c, err := v.ToCell()
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(c.ToBOC()), nil
	default:
		return "", fmt.Errorf("client: unsupported tonapi argument type %T", p)
	}
}

func tonapiDecodeStackItem(item tonapiStackItem) (any, error) {
	switch item.Type {
	case "num":
		return parseStackNum(item.Num)
	case "cell":
		c, err := cellFromAnyEncoding(item.Cell)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "slice":
		c, err := cellFromAnyEncoding(item.Slice)
		if err != nil {
			return nil, err
		}
		return c.BeginParse(), nil
	case "null", "nan":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", item.Type)
	}
}

// cellFromAnyEncoding parses a BoC given as hex or base64, both of which
// appear across tonapi endpoints.
func cellFromAnyEncoding(s string) (*cell.Cell, error) {
	if raw, err := hex.DecodeString(s); err == nil {
		if c, err := cell.FromBOC(raw); err == nil {
			return c, nil
		}
	}
	return cellFromBase64(s)
}
