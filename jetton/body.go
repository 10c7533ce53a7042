package jetton

import (
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// BuildTransferBody builds the TEP-74 transfer payload carried inside
// the message to the sender's jetton wallet. forwardPayload may be nil.
func BuildTransferBody(queryID uint64, amount *big.Int, to, responseTo *address.Address, forwardAmount tlb.Coins, forwardPayload *cell.Cell) *cell.Cell {
	b := cell.BeginCell().
		MustStoreUInt(OpTransfer, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(to).
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

// BuildBurnBody builds the TEP-74 burn payload. Excesses return to
// responseTo.
func BuildBurnBody(queryID uint64, amount *big.Int, responseTo *address.Address) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpBurn, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false). // no custom_payload
		EndCell()
}

// BuildMintBody builds the minter's mint payload: the master forwards
// an internal_transfer of jettonAmount to the new owner's wallet,
// funded with forwardAmount.
func BuildMintBody(queryID uint64, to *address.Address, jettonAmount *big.Int, forwardAmount tlb.Coins) *cell.Cell {
	internal := cell.BeginCell().
		MustStoreUInt(OpInternalTransfer, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(jettonAmount).
		MustStoreAddr(nil). // from: addr_none, minted out of thin air
		MustStoreAddr(to).
		MustStoreBigCoins(big.NewInt(0)). // forward_ton_amount
		MustStoreBoolBit(false).
		EndCell()

	return cell.BeginCell().
		MustStoreUInt(OpMint, 32).
		MustStoreUInt(queryID, 64).
		MustStoreAddr(to).
		MustStoreBigCoins(forwardAmount.Nano()).
		MustStoreRef(internal).
		EndCell()
}

// BuildChangeAdminBody transfers minter adminship to newAdmin.
func BuildChangeAdminBody(queryID uint64, newAdmin *address.Address) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpChangeAdmin, 32).
		MustStoreUInt(queryID, 64).
		MustStoreAddr(newAdmin).
		EndCell()
}

// BuildChangeContentBody replaces the minter metadata cell.
func BuildChangeContentBody(queryID uint64, content *cell.Cell) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpChangeContent, 32).
		MustStoreUInt(queryID, 64).
		MustStoreRef(content).
		EndCell()
}
