package nft

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonkit/client"
)

var (
	ownerAddr      = address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	collectionAddr = address.NewAddress(0, 0, make([]byte, 32))
)

type fakeClient struct {
	client.Client
	results map[string]*client.Result
}

func (f *fakeClient) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*client.Result, error) {
	res, ok := f.results[method]
	if !ok {
		return nil, &client.ExitCodeError{Method: method, Code: 11}
	}
	return res, nil
}

func addrSlice(a *address.Address) *cell.Slice {
	return cell.BeginCell().MustStoreAddr(a).EndCell().BeginParse()
}

func offchain(uri string) *cell.Cell {
	return cell.BeginCell().MustStoreUInt(0x01, 8).MustStoreStringSnake(uri).EndCell()
}

func TestCollectionGetData(t *testing.T) {
	fc := &fakeClient{results: map[string]*client.Result{
		"get_collection_data": client.NewResult([]any{
			big.NewInt(42),
			offchain("https://nft.example/collection.json"),
			addrSlice(ownerAddr),
		}),
	}}

	data, err := NewCollection(fc, collectionAddr).GetData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), data.NextItemIndex.Int64())
	assert.Equal(t, "https://nft.example/collection.json", data.Content.URI)
	assert.Equal(t, ownerAddr.String(), data.Owner.String())
}

func TestCollectionRoyaltyMissing(t *testing.T) {
	fc := &fakeClient{results: map[string]*client.Result{}}

	_, err := NewCollection(fc, collectionAddr).GetRoyaltyParams(context.Background())
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestCollectionRoyalty(t *testing.T) {
	fc := &fakeClient{results: map[string]*client.Result{
		"royalty_params": client.NewResult([]any{
			big.NewInt(5), big.NewInt(100), addrSlice(ownerAddr),
		}),
	}}

	r, err := NewCollection(fc, collectionAddr).GetRoyaltyParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.Numerator.Int64())
	assert.Equal(t, int64(100), r.Denominator.Int64())
	assert.Equal(t, ownerAddr.String(), r.Destination.String())
}

func TestItemGetData(t *testing.T) {
	individual := cell.BeginCell().MustStoreStringSnake("42.json").EndCell()
	fc := &fakeClient{results: map[string]*client.Result{
		"get_nft_data": client.NewResult([]any{
			big.NewInt(-1),
			big.NewInt(42),
			addrSlice(collectionAddr),
			addrSlice(ownerAddr),
			individual,
		}),
	}}

	data, err := NewItem(fc, ownerAddr).GetData(context.Background())
	require.NoError(t, err)
	assert.True(t, data.Initialized)
	assert.Equal(t, int64(42), data.Index.Int64())
	assert.Equal(t, collectionAddr.String(), data.Collection.String())
	assert.Equal(t, ownerAddr.String(), data.Owner.String())
	assert.Equal(t, individual.Hash(), data.Content.Hash())
}

func TestItemGetContentViaCollection(t *testing.T) {
	individual := cell.BeginCell().MustStoreStringSnake("42.json").EndCell()
	fc := &fakeClient{results: map[string]*client.Result{
		"get_nft_data": client.NewResult([]any{
			big.NewInt(-1), big.NewInt(42),
			addrSlice(collectionAddr), addrSlice(ownerAddr), individual,
		}),
		"get_nft_content": client.NewResult([]any{
			offchain("https://nft.example/42.json"),
		}),
	}}

	content, err := NewItem(fc, ownerAddr).GetContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://nft.example/42.json", content.URI)
}

func TestBuildTransferBody(t *testing.T) {
	payload := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("gift").EndCell()
	body := BuildTransferBody(5, ownerAddr, collectionAddr, tlb.FromNanoTONU(1), payload)

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpTransfer), op)
	queryID, _ := s.LoadUInt(64)
	assert.Equal(t, uint64(5), queryID)

	newOwner, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), newOwner.String())
	resp, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, collectionAddr.String(), resp.String())

	custom, _ := s.LoadBoolBit()
	assert.False(t, custom)
	fwd, _ := s.LoadBigCoins()
	assert.Equal(t, int64(1), fwd.Int64())

	inRef, _ := s.LoadBoolBit()
	require.True(t, inRef)
	ref, err := s.LoadRef()
	require.NoError(t, err)
	got, err := ref.ToCell()
	require.NoError(t, err)
	assert.Equal(t, payload.Hash(), got.Hash())
}

func TestBuildMintBody(t *testing.T) {
	content := offchain("43.json")
	body := BuildMintBody(1, big.NewInt(43), ownerAddr, content, tlb.MustFromTON("0.05"))

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpMint), op)
	_, _ = s.LoadUInt(64)
	index, _ := s.LoadUInt(64)
	assert.Equal(t, uint64(43), index)
	amount, _ := s.LoadBigCoins()
	assert.Equal(t, "50000000", amount.String())

	payload, err := s.LoadRef()
	require.NoError(t, err)
	owner, err := payload.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), owner.String())
}
