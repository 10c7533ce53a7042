// Package wallet wraps TON wallet contracts of all common versions with
// a single high-level API for transfers, deploys and balance queries.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonkit/client"
)

// Version selects the wallet contract code revision.
type Version string

const (
	V1R1           Version = "V1R1"
	V1R2           Version = "V1R2"
	V1R3           Version = "V1R3"
	V2R1           Version = "V2R1"
	V2R2           Version = "V2R2"
	V3R1           Version = "V3R1"
	V3R2           Version = "V3R2"
	V4R1           Version = "V4R1"
	V4R2           Version = "V4R2"
	V5R1           Version = "V5R1"
	HighloadV2R2   Version = "HighloadV2R2"
	VersionDefault Version = ""
)

// versionConfig maps a Version onto the contract config. V5R1 encodes
// the network global id into its wallet id, so it needs the network.
func versionConfig(v Version, network client.Network) (tonwallet.VersionConfig, error) {
	switch v {
	case V1R1:
		return tonwallet.V1R1, nil
	case V1R2:
		return tonwallet.V1R2, nil
	case V1R3:
		return tonwallet.V1R3, nil
	case V2R1:
		return tonwallet.V2R1, nil
	case V2R2:
		return tonwallet.V2R2, nil
	case V3R1:
		return tonwallet.V3R1, nil
	case V3R2:
		return tonwallet.V3R2, nil
	case V4R1:
		return tonwallet.V4R1, nil
	case V4R2:
		return tonwallet.V4R2, nil
	case V5R1, VersionDefault:
		return tonwallet.ConfigV5R1Beta{NetworkGlobalID: int32(network), Workchain: 0}, nil
	case HighloadV2R2:
		return tonwallet.HighloadV2R2, nil
	default:
		return nil, fmt.Errorf("wallet: unsupported version %q", v)
	}
}

// Wallet is a deployed (or deployable) wallet contract bound to a
// liteserver connection. A nil connection still allows address
// derivation and message building, but not sending.
type Wallet struct {
	raw     *tonwallet.Wallet
	client  *client.Liteserver
	version Version
}

// NewSeed generates a fresh 24-word mnemonic.
func NewSeed() []string {
	return tonwallet.NewSeed()
}

// SeedToPrivateKey derives the ed25519 key a mnemonic encodes. password
// is the optional mnemonic passphrase.
func SeedToPrivateKey(seed []string, password string) (ed25519.PrivateKey, error) {
	return tonwallet.SeedToPrivateKey(seed, password, false)
}

// FromMnemonic opens a wallet from its recovery phrase. ls may be nil
// for offline use.
func FromMnemonic(ls *client.Liteserver, seed []string, version Version) (*Wallet, error) {
	key, err := SeedToPrivateKey(seed, "")
	if err != nil {
		return nil, fmt.Errorf("wallet: derive key: %w", err)
	}
	return FromPrivateKey(ls, key, version)
}

// FromPrivateKey opens a wallet from a raw ed25519 private key. ls may
// be nil for offline use.
func FromPrivateKey(ls *client.Liteserver, key ed25519.PrivateKey, version Version) (*Wallet, error) {
	network := client.Mainnet
	var api tonwallet.TonAPI
	if ls != nil {
		network = ls.Network()
		api = ls.API()
	}

	cfg, err := versionConfig(version, network)
	if err != nil {
		return nil, err
	}

	raw, err := tonwallet.FromPrivateKeyWithOptions(api, key, cfg, tonwallet.WithWorkchain(0))
	if err != nil {
		return nil, fmt.Errorf("wallet: init contract: %w", err)
	}
	return &Wallet{raw: raw, client: ls, version: version}, nil
}

// Generate creates a brand new wallet and returns it with its mnemonic.
func Generate(ls *client.Liteserver, version Version) (*Wallet, []string, error) {
	seed := NewSeed()
	w, err := FromMnemonic(ls, seed, version)
	if err != nil {
		return nil, nil, err
	}
	return w, seed, nil
}

// Address returns the wallet contract address.
func (w *Wallet) Address() *address.Address {
	return w.raw.WalletAddress()
}

// PublicKey returns the wallet's ed25519 public key.
func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.raw.PrivateKey().Public().(ed25519.PublicKey)
}

// Version returns the contract revision this wallet was opened with.
func (w *Wallet) Version() Version {
	if w.version == VersionDefault {
		return V5R1
	}
	return w.version
}

// Raw exposes the underlying tonutils-go wallet for flows not covered
// by this wrapper.
func (w *Wallet) Raw() *tonwallet.Wallet { return w.raw }

var errOffline = errors.New("wallet: no liteserver connection")

// Balance fetches the current contract balance.
func (w *Wallet) Balance(ctx context.Context) (tlb.Coins, error) {
	if w.client == nil {
		return tlb.Coins{}, errOffline
	}
	acc, err := w.client.GetAccount(ctx, w.Address())
	if err != nil {
		return tlb.Coins{}, err
	}
	return acc.Balance, nil
}

// Seqno fetches the wallet seqno. An undeployed wallet reports 0.
func (w *Wallet) Seqno(ctx context.Context) (uint64, error) {
	if w.client == nil {
		return 0, errOffline
	}
	res, err := w.client.RunGetMethod(ctx, w.Address(), "seqno")
	if err != nil {
		var exitErr *client.ExitCodeError
		if errors.As(err, &exitErr) {
			return 0, nil
		}
		return 0, err
	}
	n, err := res.Int(0)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// IsDeployed reports whether the wallet contract is active on-chain.
func (w *Wallet) IsDeployed(ctx context.Context) (bool, error) {
	if w.client == nil {
		return false, errOffline
	}
	acc, err := w.client.GetAccount(ctx, w.Address())
	if err != nil {
		return false, err
	}
	return acc.Active(), nil
}

// Transfer sends amount to a single destination with an optional text
// comment and waits for the message to be confirmed.
func (w *Wallet) Transfer(ctx context.Context, to *address.Address, amount tlb.Coins, comment string) error {
	if w.client == nil {
		return errOffline
	}
	return w.raw.Transfer(ctx, to, amount, comment, true)
}

// Message is a single outgoing transfer within a batch.
type Message struct {
	To     *address.Address
	Amount tlb.Coins
	Body   *cell.Cell
	Bounce bool
}

// BatchTransfer sends several transfers in one external message. V4 and
// below fit at most 4 messages, V5R1 up to 255.
func (w *Wallet) BatchTransfer(ctx context.Context, messages []Message) error {
	if w.client == nil {
		return errOffline
	}
	if len(messages) == 0 {
		return errors.New("wallet: empty batch")
	}

	out := make([]*tonwallet.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, &tonwallet.Message{
			// mode 3: pay fees separately, ignore action errors
			Mode: 1 + 2,
			InternalMessage: &tlb.InternalMessage{
				Bounce:  m.Bounce,
				DstAddr: m.To,
				Amount:  m.Amount,
				Body:    m.Body,
			},
		})
	}
	return w.raw.SendMany(ctx, out, true)
}

// Send dispatches one prebuilt internal message, used by the jetton and
// nft packages to deliver their bodies.
func (w *Wallet) Send(ctx context.Context, to *address.Address, amount tlb.Coins, body *cell.Cell) error {
	if w.client == nil {
		return errOffline
	}
	return w.raw.Send(ctx, tonwallet.SimpleMessage(to, amount, body), true)
}

// DeployContract deploys a contract from code and data, funding it with
// amount, and returns the deployed address.
func (w *Wallet) DeployContract(ctx context.Context, amount tlb.Coins, body, code, data *cell.Cell) (*address.Address, error) {
	if w.client == nil {
		return nil, errOffline
	}
	addr, _, _, err := w.raw.DeployContractWaitTransaction(ctx, amount, body, code, data)
	if err != nil {
		return nil, fmt.Errorf("wallet: deploy: %w", err)
	}
	return addr, nil
}

// CommentCell builds the standard text comment payload.
func CommentCell(text string) (*cell.Cell, error) {
	return tonwallet.CreateCommentCell(text)
}
