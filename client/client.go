// Package client provides a unified interface over TON data providers:
// the native liteserver protocol and the Toncenter, Tonapi, QuickNode and
// Tatum HTTP APIs. Cell, address and message primitives are delegated to
// github.com/xssnick/tonutils-go.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Network selects the TON network a client operates on.
type Network int32

const (
	Mainnet Network = -239
	Testnet Network = -3
)

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

// Account is a snapshot of contract state as reported by a provider.
type Account struct {
	Address *address.Address
	Status  string // active, frozen, uninitialized or nonexist
	Balance tlb.Coins
	Code    *cell.Cell
	Data    *cell.Cell

	LastLT   uint64
	LastHash []byte
}

// Active reports whether the contract is deployed and active.
func (a *Account) Active() bool {
	return a != nil && a.Status == "active"
}

// MasterchainInfo identifies the latest masterchain block a provider
// knows about.
type MasterchainInfo struct {
	Workchain int32
	Shard     int64
	Seqno     uint32
	RootHash  []byte
	FileHash  []byte
}

// Transaction is a provider-agnostic view of an account transaction.
// Raw carries the full parsed transaction when the provider returned its BoC.
type Transaction struct {
	LT   uint64
	Hash []byte
	Now  uint32

	Raw *tlb.Transaction
}

// Client is the minimal operation set shared by all providers.
//
// RunGetMethod accepts *big.Int, int, int64, uint64, *cell.Cell, *cell.Slice
// and *address.Address stack parameters; other types are rejected.
type Client interface {
	// SendMessage submits a serialized external message to the network.
	SendMessage(ctx context.Context, boc []byte) error

	// RunGetMethod executes a contract get-method and returns its stack.
	RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error)

	// GetAccount fetches contract state for an address.
	GetAccount(ctx context.Context, addr *address.Address) (*Account, error)

	// GetTransactions fetches up to limit transactions for an address,
	// starting from (lt, hash) when both are set, newest first.
	GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error)

	// GetMasterchainInfo fetches the latest masterchain block id.
	GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error)

	// GetConfigParam fetches a global blockchain config parameter cell.
	GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error)

	Close() error
}

var (
	// ErrNotFound is returned when a provider has no data for the request.
	ErrNotFound = errors.New("client: not found")
)

// ExitCodeError is returned when a get-method completes with a non-zero
// TVM exit code.
type ExitCodeError struct {
	Method string
	Code   int64
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("client: get method %q exited with code %d", e.Method, e.Code)
}

// ResponseError is a provider-level error with the upstream status code.
type ResponseError struct {
	Code     int
	Message  string
	Endpoint string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("client: %s: %d %s", e.Endpoint, e.Code, e.Message)
}

// Result is a decoded TVM stack returned by a get-method.
type Result struct {
	items []any
}

// NewResult wraps already-decoded stack items.
func NewResult(items []any) *Result {
	return &Result{items: items}
}

// Len returns the number of stack items.
func (r *Result) Len() int { return len(r.items) }

// Item returns the raw stack item at index i.
func (r *Result) Item(i int) (any, error) {
	if i < 0 || i >= len(r.items) {
		return nil, fmt.Errorf("client: stack index %d out of range (len %d)", i, len(r.items))
	}
	return r.items[i], nil
}

// Int returns the stack item at index i as *big.Int.
func (r *Result) Int(i int) (*big.Int, error) {
	it, err := r.Item(i)
	if err != nil {
		return nil, err
	}
	v, ok := it.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("client: stack item %d is %T, not integer", i, it)
	}
	return v, nil
}

// Cell returns the stack item at index i as *cell.Cell. Slices are
// converted back to cells.
func (r *Result) Cell(i int) (*cell.Cell, error) {
	it, err := r.Item(i)
	if err != nil {
		return nil, err
	}
	switch v := it.(type) {
	case *cell.Cell:
		return v, nil
	case *cell.Slice:
		return v.ToCell()
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("client: stack item %d is %T, not cell", i, it)
	}
}

// Slice returns the stack item at index i as *cell.Slice.
func (r *Result) Slice(i int) (*cell.Slice, error) {
	c, err := r.Cell(i)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return c.BeginParse(), nil
}

// Address reads the stack item at index i as an address slice.
func (r *Result) Address(i int) (*address.Address, error) {
	s, err := r.Slice(i)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("client: stack item %d is empty, not address", i)
	}
	return s.LoadAddr()
}

// normalizeParams converts supported get-method parameters into the
// canonical set {*big.Int, *cell.Cell, *cell.Slice}.
func normalizeParams(params []any) ([]any, error) {
	out := make([]any, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case *big.Int:
			out = append(out, v)
		case int:
			out = append(out, big.NewInt(int64(v)))
		case int64:
			out = append(out, big.NewInt(v))
		case uint64:
			out = append(out, new(big.Int).SetUint64(v))
		case *cell.Cell:
			out = append(out, v)
		case *cell.Slice:
			out = append(out, v)
		case *address.Address:
			c := cell.BeginCell().MustStoreAddr(v).EndCell()
			out = append(out, c.BeginParse())
		default:
			return nil, fmt.Errorf("client: unsupported get method parameter type %T", p)
		}
	}
	return out, nil
}
