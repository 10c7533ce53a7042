package nft

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

var transferGas = tlb.MustFromTON("0.05")

// BuildTransferBody builds the TEP-62 ownership transfer payload.
// responseTo receives the excesses; forwardPayload (with forwardAmount)
// is delivered to the new owner as ownership_assigned.
func BuildTransferBody(queryID uint64, newOwner, responseTo *address.Address, forwardAmount tlb.Coins, forwardPayload *cell.Cell) *cell.Cell {
	b := cell.BeginCell().
		MustStoreUInt(OpTransfer, 32).
		MustStoreUInt(queryID, 64).
		MustStoreAddr(newOwner).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false). // no custom_payload
		MustStoreBigCoins(forwardAmount.Nano())

	if forwardPayload != nil {
		b.MustStoreBoolBit(true).MustStoreRef(forwardPayload)
	} else {
		b.MustStoreBoolBit(false)
	}
	return b.EndCell()
}

// BuildGetStaticDataBody asks an item to report its index and
// collection back to the sender.
func BuildGetStaticDataBody(queryID uint64) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpGetStaticData, 32).
		MustStoreUInt(queryID, 64).
		EndCell()
}

// BuildMintBody builds the standard collection mint payload: deploy the
// item at index, owned by owner, with the given individual content,
// funded with itemAmount.
func BuildMintBody(queryID uint64, index *big.Int, owner *address.Address, itemContent *cell.Cell, itemAmount tlb.Coins) *cell.Cell {
	payload := cell.BeginCell().
		MustStoreAddr(owner).
		MustStoreRef(itemContent).
		EndCell()

	return cell.BeginCell().
		MustStoreUInt(OpMint, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigUInt(index, 64).
		MustStoreBigCoins(itemAmount.Nano()).
		MustStoreRef(payload).
		EndCell()
}

// Transfer hands the item over to newOwner. A non-empty comment is
// delivered with the ownership notification.
func (i *Item) Transfer(ctx context.Context, sender *wallet.Wallet, newOwner *address.Address, comment string) error {
	forwardAmount := tlb.FromNanoTONU(0)
	var payload *cell.Cell
	if comment != "" {
		var err error
		if payload, err = wallet.CommentCell(comment); err != nil {
			return fmt.Errorf("nft: comment: %w", err)
		}
		forwardAmount = tlb.FromNanoTONU(1)
	}

	body := BuildTransferBody(randQueryID(), newOwner, sender.Address(), forwardAmount, payload)
	return sender.Send(ctx, i.addr, transferGas, body)
}

func randQueryID() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}
