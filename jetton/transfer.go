package jetton

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonkit/wallet"
)

// Gas attached to jetton operations, enough for the standard wallet
// code; excesses come back to the sender.
var (
	transferGas = tlb.MustFromTON("0.05")
	burnGas     = tlb.MustFromTON("0.05")
	mintGas     = tlb.MustFromTON("0.08")
	adminGas    = tlb.MustFromTON("0.02")
)

// Transfer moves amount (in base units) from sender's jetton wallet to
// the owner wallet at to. A non-empty comment is delivered with a
// 1 nanoton notification.
func (m *Master) Transfer(ctx context.Context, sender *wallet.Wallet, to *address.Address, amount *big.Int, comment string) error {
	jw, err := m.GetWalletAddress(ctx, sender.Address())
	if err != nil {
		return err
	}

	forwardAmount := tlb.FromNanoTONU(0)
	var payload *cell.Cell
	if comment != "" {
		if payload, err = wallet.CommentCell(comment); err != nil {
			return fmt.Errorf("jetton: comment: %w", err)
		}
		forwardAmount = tlb.FromNanoTONU(1)
	}

	body := BuildTransferBody(randQueryID(), amount, to, sender.Address(), forwardAmount, payload)
	return sender.Send(ctx, jw, transferGas, body)
}

// Burn destroys amount from sender's jetton wallet.
func (m *Master) Burn(ctx context.Context, sender *wallet.Wallet, amount *big.Int) error {
	jw, err := m.GetWalletAddress(ctx, sender.Address())
	if err != nil {
		return err
	}
	body := BuildBurnBody(randQueryID(), amount, sender.Address())
	return sender.Send(ctx, jw, burnGas, body)
}

// Mint issues jettonAmount to the owner wallet at to. admin must hold
// the minter admin key.
func (m *Master) Mint(ctx context.Context, admin *wallet.Wallet, to *address.Address, jettonAmount *big.Int) error {
	body := BuildMintBody(randQueryID(), to, jettonAmount, tlb.MustFromTON("0.02"))
	return admin.Send(ctx, m.addr, mintGas, body)
}

// ChangeAdmin hands the minter over to newAdmin.
func (m *Master) ChangeAdmin(ctx context.Context, admin *wallet.Wallet, newAdmin *address.Address) error {
	return admin.Send(ctx, m.addr, adminGas, BuildChangeAdminBody(randQueryID(), newAdmin))
}

func randQueryID() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}
