package client

import (
	"context"
	"errors"
	"sync"

	"github.com/mroth/weightedrand/v2"
	"github.com/rs/zerolog"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Balancer spreads calls across several providers by weight and fails
// over to the remaining ones when the chosen provider errors. All
// providers must point at the same network.
type Balancer struct {
	log     zerolog.Logger
	mu      sync.Mutex
	entries []balancerEntry
	chooser *weightedrand.Chooser[int, int]
}

type balancerEntry struct {
	client Client
	weight int
}

// NewBalancer builds a balancer over the given providers. Weights map
// one to one onto providers; a missing or non-positive weight counts
// as 1.
func NewBalancer(log zerolog.Logger, clients []Client, weights []int) (*Balancer, error) {
	if len(clients) == 0 {
		return nil, errors.New("client: balancer needs at least one provider")
	}

	entries := make([]balancerEntry, len(clients))
	choices := make([]weightedrand.Choice[int, int], len(clients))
	for i, c := range clients {
		w := 1
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		entries[i] = balancerEntry{client: c, weight: w}
		choices[i] = weightedrand.NewChoice(i, w)
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, err
	}
	return &Balancer{log: log, entries: entries, chooser: chooser}, nil
}

var _ Client = (*Balancer)(nil)

// order returns provider indexes to try: the weighted pick first, the
// rest in declaration order.
func (b *Balancer) order() []int {
	b.mu.Lock()
	first := b.chooser.Pick()
	b.mu.Unlock()

	out := make([]int, 0, len(b.entries))
	out = append(out, first)
	for i := range b.entries {
		if i != first {
			out = append(out, i)
		}
	}
	return out
}

func (b *Balancer) each(ctx context.Context, op string, fn func(Client) error) error {
	var lastErr error
	for _, i := range b.order() {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(b.entries[i].client)
		if err == nil {
			return nil
		}
		// Contract-level failures are the same on every provider,
		// retrying them elsewhere only burns quota.
		var exitErr *ExitCodeError
		if errors.As(err, &exitErr) || errors.Is(err, ErrNotFound) {
			return err
		}

		b.log.Warn().Err(err).Str("op", op).Int("provider", i).Msg("provider failed, trying next")
		lastErr = err
	}
	return lastErr
}

func (b *Balancer) SendMessage(ctx context.Context, boc []byte) error {
	return b.each(ctx, "send_message", func(c Client) error {
		return c.SendMessage(ctx, boc)
	})
}

func (b *Balancer) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*Result, error) {
	var res *Result
	err := b.each(ctx, "run_get_method", func(c Client) error {
		var err error
		res, err = c.RunGetMethod(ctx, addr, method, params...)
		return err
	})
	return res, err
}

func (b *Balancer) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	var acc *Account
	err := b.each(ctx, "get_account", func(c Client) error {
		var err error
		acc, err = c.GetAccount(ctx, addr)
		return err
	})
	return acc, err
}

func (b *Balancer) GetTransactions(ctx context.Context, addr *address.Address, lt uint64, hash []byte, limit int) ([]*Transaction, error) {
	var txs []*Transaction
	err := b.each(ctx, "get_transactions", func(c Client) error {
		var err error
		txs, err = c.GetTransactions(ctx, addr, lt, hash, limit)
		return err
	})
	return txs, err
}

func (b *Balancer) GetMasterchainInfo(ctx context.Context) (*MasterchainInfo, error) {
	var info *MasterchainInfo
	err := b.each(ctx, "get_masterchain_info", func(c Client) error {
		var err error
		info, err = c.GetMasterchainInfo(ctx)
		return err
	})
	return info, err
}

func (b *Balancer) GetConfigParam(ctx context.Context, id int32) (*cell.Cell, error) {
	var param *cell.Cell
	err := b.each(ctx, "get_config_param", func(c Client) error {
		var err error
		param, err = c.GetConfigParam(ctx, id)
		return err
	})
	return param, err
}

func (b *Balancer) Close() error {
	var errs []error
	for _, e := range b.entries {
		if err := e.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
