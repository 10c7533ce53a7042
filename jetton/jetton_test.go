package jetton

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
	ownerAddr  = address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	masterAddr = address.NewAddress(0, 0, bytesRepeat(0x11, 32))
)

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// fakeClient serves canned get-method results keyed by method name.
type fakeClient struct {
	client.Client
	results map[string]*client.Result
	errs    map[string]error
}

func (f *fakeClient) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*client.Result, error) {
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	res, ok := f.results[method]
	if !ok {
		return nil, client.ErrNotFound
	}
	return res, nil
}

func addrSlice(a *address.Address) *cell.Slice {
	return cell.BeginCell().MustStoreAddr(a).EndCell().BeginParse()
}

func TestMasterGetData(t *testing.T) {
	content := cell.BeginCell().
		MustStoreUInt(0x01, 8).
		MustStoreStringSnake("https://example.com/jetton.json").
		EndCell()

	fc := &fakeClient{results: map[string]*client.Result{
		"get_jetton_data": client.NewResult([]any{
			big.NewInt(1_000_000),
			big.NewInt(-1),
			addrSlice(ownerAddr),
			content,
			cell.BeginCell().EndCell(),
		}),
	}}

	data, err := NewMaster(fc, masterAddr).GetData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), data.TotalSupply.Int64())
	assert.True(t, data.Mintable)
	assert.Equal(t, ownerAddr.String(), data.Admin.String())
	assert.Equal(t, "https://example.com/jetton.json", data.Content.URI)
}

func TestMasterGetWalletAddress(t *testing.T) {
	fc := &fakeClient{results: map[string]*client.Result{
		"get_wallet_address": client.NewResult([]any{addrSlice(ownerAddr)}),
	}}

	got, err := NewMaster(fc, masterAddr).GetWalletAddress(context.Background(), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), got.String())
}

func TestWalletGetDataUndeployed(t *testing.T) {
	fc := &fakeClient{errs: map[string]error{
		"get_wallet_data": &client.ExitCodeError{Method: "get_wallet_data", Code: -13},
	}}

	data, err := NewWallet(fc, ownerAddr).GetData(context.Background())
	require.NoError(t, err)
	assert.Zero(t, data.Balance.Sign())
}

func TestBuildTransferBody(t *testing.T) {
	payload := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("hi").EndCell()
	body := BuildTransferBody(7, big.NewInt(12345), ownerAddr, masterAddr, tlb.FromNanoTONU(1), payload)

	s := body.BeginParse()
	op, err := s.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(OpTransfer), op)

	queryID, _ := s.LoadUInt(64)
	assert.Equal(t, uint64(7), queryID)

	amount, err := s.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), amount.Int64())

	to, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), to.String())

	resp, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, masterAddr.String(), resp.String())

	custom, _ := s.LoadBoolBit()
	assert.False(t, custom)

	fwd, err := s.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, int64(1), fwd.Int64())

	inRef, _ := s.LoadBoolBit()
	require.True(t, inRef)
	ref, err := s.LoadRef()
	require.NoError(t, err)
	got, err := ref.ToCell()
	require.NoError(t, err)
	assert.Equal(t, payload.Hash(), got.Hash())
}

func TestBuildBurnBody(t *testing.T) {
	body := BuildBurnBody(9, big.NewInt(500), ownerAddr)

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpBurn), op)
	queryID, _ := s.LoadUInt(64)
	assert.Equal(t, uint64(9), queryID)
	amount, _ := s.LoadBigCoins()
	assert.Equal(t, int64(500), amount.Int64())
	resp, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), resp.String())
}

func TestBuildMintBody(t *testing.T) {
	body := BuildMintBody(3, ownerAddr, big.NewInt(777), tlb.MustFromTON("0.02"))

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpMint), op)
	_, _ = s.LoadUInt(64)
	to, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), to.String())

	fwd, err := s.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, "20000000", fwd.String())

	ref, err := s.LoadRef()
	require.NoError(t, err)
	innerOp, _ := ref.LoadUInt(32)
	assert.Equal(t, uint64(OpInternalTransfer), innerOp)
}

func TestBuildChangeAdminBody(t *testing.T) {
	body := BuildChangeAdminBody(1, ownerAddr)

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpChangeAdmin), op)
	_, _ = s.LoadUInt(64)
	got, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, ownerAddr.String(), got.String())
}
