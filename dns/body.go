package dns

import (
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// OpChangeRecord is the domain item op for editing a record.
const OpChangeRecord = 0x4eb1f0f9

// BuildSetRecordBody builds the payload that stores value under the
// category on a domain item owned by the sender. A nil value deletes
// the record.
func BuildSetRecordBody(queryID uint64, category string, value *cell.Cell) *cell.Cell {
	b := cell.BeginCell().
		MustStoreUInt(OpChangeRecord, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigUInt(CategoryHash(category), 256)
	if value != nil {
		b.MustStoreRef(value)
	}
	return b.EndCell()
}

// WalletRecordCell encodes a wallet record value.
func WalletRecordCell(addr *address.Address) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(tagSMCAddress, 16).
		MustStoreAddr(addr).
		MustStoreUInt(0, 8). // flags
		EndCell()
}

// NextResolverRecordCell encodes a subdomain delegation value.
func NextResolverRecordCell(resolver *address.Address) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(tagNextResolver, 16).
		MustStoreAddr(resolver).
		EndCell()
}

// SiteRecordCell encodes a TON Site record value from a 32-byte ADNL
// address.
func SiteRecordCell(adnl []byte) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(tagADNLAddress, 16).
		MustStoreSlice(adnl, 256).
		MustStoreUInt(0, 8). // flags
		EndCell()
}

// StorageRecordCell encodes a TON Storage record value from a 32-byte
// bag id.
func StorageRecordCell(bagID []byte) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(tagStorage, 16).
		MustStoreSlice(bagID, 256).
		EndCell()
}
