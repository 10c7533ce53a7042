// Package nft implements TEP-62 collection and item interaction.
package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonkit/client"
	"tonkit/internal/tep64"
)

// TEP-62 operation codes.
const (
	OpTransfer          = 0x5fcc3d14
	OpOwnershipAssigned = 0x05138d91
	OpGetStaticData     = 0x2fcb26a2
	OpReportStaticData  = 0x8b771735
	OpExcesses          = 0xd53276db

	// Collection-internal op for minting a new item.
	OpMint = 0x1
)

// Content is TEP-64 token metadata.
type Content = tep64.Content

// Collection is an NFT collection contract handle.
type Collection struct {
	client client.Client
	addr   *address.Address
}

// NewCollection binds a collection contract at addr to a provider.
func NewCollection(c client.Client, addr *address.Address) *Collection {
	return &Collection{client: c, addr: addr}
}

// Address returns the collection contract address.
func (c *Collection) Address() *address.Address { return c.addr }

// CollectionData is the state reported by get_collection_data.
type CollectionData struct {
	NextItemIndex *big.Int
	Content       *Content
	Owner         *address.Address
}

// GetData reads the collection state.
func (c *Collection) GetData(ctx context.Context) (*CollectionData, error) {
	res, err := c.client.RunGetMethod(ctx, c.addr, "get_collection_data")
	if err != nil {
		return nil, fmt.Errorf("nft: get_collection_data: %w", err)
	}

	next, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	content, err := res.Cell(1)
	if err != nil {
		return nil, err
	}
	owner, err := res.Address(2)
	if err != nil {
		owner = nil
	}
	return &CollectionData{NextItemIndex: next, Content: tep64.Parse(content), Owner: owner}, nil
}

// GetItemAddress resolves the item contract address for an index.
func (c *Collection) GetItemAddress(ctx context.Context, index *big.Int) (*address.Address, error) {
	res, err := c.client.RunGetMethod(ctx, c.addr, "get_nft_address_by_index", index)
	if err != nil {
		return nil, fmt.Errorf("nft: get_nft_address_by_index: %w", err)
	}
	return res.Address(0)
}

// GetItem resolves and wraps the item at index.
func (c *Collection) GetItem(ctx context.Context, index *big.Int) (*Item, error) {
	addr, err := c.GetItemAddress(ctx, index)
	if err != nil {
		return nil, err
	}
	return NewItem(c.client, addr), nil
}

// RoyaltyParams is the TEP-66 royalty share: Numerator/Denominator of
// each sale goes to Destination.
type RoyaltyParams struct {
	Numerator   *big.Int
	Denominator *big.Int
	Destination *address.Address
}

// GetRoyaltyParams reads the TEP-66 royalty settings. Collections
// without the extension report ErrNotFound.
func (c *Collection) GetRoyaltyParams(ctx context.Context) (*RoyaltyParams, error) {
	res, err := c.client.RunGetMethod(ctx, c.addr, "royalty_params")
	if err != nil {
		var exitErr *client.ExitCodeError
		if errors.As(err, &exitErr) {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("nft: royalty_params: %w", err)
	}

	num, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	den, err := res.Int(1)
	if err != nil {
		return nil, err
	}
	dst, err := res.Address(2)
	if err != nil {
		return nil, err
	}
	return &RoyaltyParams{Numerator: num, Denominator: den, Destination: dst}, nil
}

// GetItemContent resolves an item's full metadata by combining the
// collection base with the item's individual content cell.
func (c *Collection) GetItemContent(ctx context.Context, index *big.Int, individual *cell.Cell) (*Content, error) {
	res, err := c.client.RunGetMethod(ctx, c.addr, "get_nft_content", index, individual)
	if err != nil {
		return nil, fmt.Errorf("nft: get_nft_content: %w", err)
	}
	full, err := res.Cell(0)
	if err != nil {
		return nil, err
	}
	return tep64.Parse(full), nil
}

// Item is an NFT item contract handle.
type Item struct {
	client client.Client
	addr   *address.Address
}

// NewItem binds an item contract at addr to a provider.
func NewItem(c client.Client, addr *address.Address) *Item {
	return &Item{client: c, addr: addr}
}

// Address returns the item contract address.
func (i *Item) Address() *address.Address { return i.addr }

// ItemData is the state reported by get_nft_data. Content is the raw
// individual content cell, resolve it through the collection.
type ItemData struct {
	Initialized bool
	Index       *big.Int
	Collection  *address.Address
	Owner       *address.Address
	Content     *cell.Cell
}

// GetData reads the item state.
func (i *Item) GetData(ctx context.Context) (*ItemData, error) {
	res, err := i.client.RunGetMethod(ctx, i.addr, "get_nft_data")
	if err != nil {
		return nil, fmt.Errorf("nft: get_nft_data: %w", err)
	}

	initRaw, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	index, err := res.Int(1)
	if err != nil {
		return nil, err
	}
	collection, err := res.Address(2)
	if err != nil {
		collection = nil
	}
	owner, err := res.Address(3)
	if err != nil {
		owner = nil
	}
	content, err := res.Cell(4)
	if err != nil {
		return nil, err
	}
	return &ItemData{
		Initialized: initRaw.Sign() != 0,
		Index:       index,
		Collection:  collection,
		Owner:       owner,
		Content:     content,
	}, nil
}

// GetContent resolves the item's full metadata through its collection.
// Standalone items parse their content cell directly.
func (i *Item) GetContent(ctx context.Context) (*Content, error) {
	data, err := i.GetData(ctx)
	if err != nil {
		return nil, err
	}
	if data.Collection == nil {
		return tep64.Parse(data.Content), nil
	}
	return NewCollection(i.client, data.Collection).GetItemContent(ctx, data.Index, data.Content)
}
