// Package dns resolves TON DNS names through the on-chain resolver
// chain and builds record management payloads for owned domains.
package dns

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonkit/client"
)

// Record value tags from the DNS standard.
const (
	tagSMCAddress   = 0x9fd3
	tagNextResolver = 0xba93
	tagADNLAddress  = 0xad01
	tagStorage      = 0x7473
)

// Well-known record categories, hashed into dict keys.
const (
	CategoryWallet       = "wallet"
	CategorySite         = "site"
	CategoryStorage      = "storage"
	CategoryNextResolver = "dns_next_resolver"
)

// rootConfigParam is the blockchain config entry holding the root
// resolver address.
const rootConfigParam = 4

var (
	// ErrNotResolved is returned when the chain has no record for the
	// name and category.
	ErrNotResolved = errors.New("dns: not resolved")
	// ErrBadDomain is returned for names that cannot be encoded.
	ErrBadDomain = errors.New("dns: invalid domain name")
)

// CategoryHash converts a category name to its 256-bit dict key. The
// empty category resolves all records at once.
func CategoryHash(category string) *big.Int {
	if category == "" {
		return big.NewInt(0)
	}
	h := sha256.Sum256([]byte(category))
	return new(big.Int).SetBytes(h[:])
}

// encodeName converts a human-readable name into the on-chain byte
// form: labels in reverse order, each terminated with a zero byte.
func encodeName(domain string) ([]byte, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" {
		return nil, ErrBadDomain
	}

	labels := strings.Split(domain, ".")
	var out []byte
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		if label == "" || len(label) > 126 || strings.ContainsRune(label, 0) {
			return nil, ErrBadDomain
		}
		out = append(out, label...)
		out = append(out, 0)
	}
	return out, nil
}

// Resolver walks the resolver chain starting at the root from the
// blockchain config.
type Resolver struct {
	client client.Client
	root   *address.Address
}

// NewResolver reads the root resolver address from the network config.
func NewResolver(ctx context.Context, c client.Client) (*Resolver, error) {
	param, err := c.GetConfigParam(ctx, rootConfigParam)
	if err != nil {
		return nil, fmt.Errorf("dns: root resolver config: %w", err)
	}

	hash, err := param.BeginParse().LoadSlice(256)
	if err != nil {
		return nil, fmt.Errorf("dns: root resolver config: %w", err)
	}
	// The root resolver lives in the masterchain.
	return &Resolver{client: c, root: address.NewAddress(0, 0xFF, hash)}, nil
}

// NewResolverWithRoot uses a fixed root resolver, for tests and custom
// networks.
func NewResolverWithRoot(c client.Client, root *address.Address) *Resolver {
	return &Resolver{client: c, root: root}
}

// Resolve returns the raw record cell for a name and category,
// following next-resolver links.
func (r *Resolver) Resolve(ctx context.Context, domain, category string) (*cell.Cell, error) {
	name, err := encodeName(domain)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, r.root, name, CategoryHash(category))
}

func (r *Resolver) resolve(ctx context.Context, resolver *address.Address, name []byte, category *big.Int) (*cell.Cell, error) {
	nameCell := cell.BeginCell().MustStoreSlice(name, uint(len(name)*8)).EndCell()

	res, err := r.client.RunGetMethod(ctx, resolver, "dnsresolve", nameCell.BeginParse(), category)
	if err != nil {
		var exitErr *client.ExitCodeError
		if errors.As(err, &exitErr) {
			return nil, ErrNotResolved
		}
		return nil, fmt.Errorf("dns: dnsresolve: %w", err)
	}

	bitsRes, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	record, err := res.Cell(1)
	if err != nil {
		return nil, err
	}

	bits := bitsRes.Int64()
	switch {
	case bits == 0 || record == nil:
		return nil, ErrNotResolved
	case bits < 0 || bits > int64(len(name))*8:
		return nil, fmt.Errorf("dns: resolver claims %d resolved bits for a %d-bit name", bits, len(name)*8)
	case bits%8 != 0:
		return nil, fmt.Errorf("dns: resolver returned %d bits, not byte-aligned", bits)
	case bits == int64(len(name))*8:
		return record, nil
	}

	// Partial match: the record points at the resolver owning the rest
	// of the name.
	next, err := parseNextResolver(record)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, next, name[bits/8:], category)
}

func parseNextResolver(record *cell.Cell) (*address.Address, error) {
	s := record.BeginParse()
	tag, err := s.LoadUInt(16)
	if err != nil || tag != tagNextResolver {
		return nil, fmt.Errorf("dns: expected next resolver record, got tag %#x", tag)
	}
	return s.LoadAddr()
}

// ResolveWallet returns the wallet address a name points at.
func (r *Resolver) ResolveWallet(ctx context.Context, domain string) (*address.Address, error) {
	record, err := r.Resolve(ctx, domain, CategoryWallet)
	if err != nil {
		return nil, err
	}

	s := record.BeginParse()
	tag, err := s.LoadUInt(16)
	if err != nil || tag != tagSMCAddress {
		return nil, fmt.Errorf("dns: unexpected wallet record tag %#x", tag)
	}
	return s.LoadAddr()
}

// ResolveSite returns the ADNL address of the TON Site behind a name.
func (r *Resolver) ResolveSite(ctx context.Context, domain string) ([]byte, error) {
	record, err := r.Resolve(ctx, domain, CategorySite)
	if err != nil {
		return nil, err
	}

	s := record.BeginParse()
	tag, err := s.LoadUInt(16)
	if err != nil || tag != tagADNLAddress {
		return nil, fmt.Errorf("dns: unexpected site record tag %#x", tag)
	}
	return s.LoadSlice(256)
}

// ResolveStorage returns the storage bag id behind a name.
func (r *Resolver) ResolveStorage(ctx context.Context, domain string) ([]byte, error) {
	record, err := r.Resolve(ctx, domain, CategoryStorage)
	if err != nil {
		return nil, err
	}

	s := record.BeginParse()
	tag, err := s.LoadUInt(16)
	if err != nil || tag != tagStorage {
		return nil, fmt.Errorf("dns: unexpected storage record tag %#x", tag)
	}
	return s.LoadSlice(256)
}
