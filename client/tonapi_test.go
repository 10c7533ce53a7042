package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

func newTestTonapi(t *testing.T, handler http.HandlerFunc) *Tonapi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Tonapi{network: Mainnet, api: newHTTPAPI(srv.URL)}
}

func TestTonapiRunGetMethod(t *testing.T) {
	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blockchain/accounts/"+testAddr.String()+"/methods/get_wallet_address", r.URL.Path)
		require.Equal(t, []string{"77"}, r.URL.Query()["args"])

		writeJSON(w, `{"success": true, "exit_code": 0, "stack": [{"type": "num", "num": "0x1f"}]}`)
	})

	res, err := c.RunGetMethod(context.Background(), testAddr, "get_wallet_address", 77)
	require.NoError(t, err)

	n, err := res.Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(31), n.Int64())
}

func TestTonapiRunGetMethodExitCode(t *testing.T) {
	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"success": false, "exit_code": 11, "stack": []}`)
	})

	_, err := c.RunGetMethod(context.Background(), testAddr, "seqno")
	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, int64(11), exitErr.Code)
}

func TestTonapiGetAccount(t *testing.T) {
	code := cell.BeginCell().MustStoreUInt(9, 8).EndCell()

	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blockchain/accounts/"+testAddr.String(), r.URL.Path)

		resp := map[string]any{
			"balance":               2000000000,
			"status":                "active",
			"code":                  hex.EncodeToString(code.ToBOC()),
			"last_transaction_lt":   123456,
			"last_transaction_hash": hex.EncodeToString(make([]byte, 32)),
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	acc, err := c.GetAccount(context.Background(), testAddr)
	require.NoError(t, err)
	assert.True(t, acc.Active())
	assert.Equal(t, "2000000000", acc.Balance.Nano().String())
	assert.Equal(t, code.Hash(), acc.Code.Hash())
	assert.Equal(t, uint64(123456), acc.LastLT)
}

func TestTonapiGetTransactions(t *testing.T) {
	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blockchain/accounts/"+testAddr.String()+"/transactions", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "555", r.URL.Query().Get("before_lt"))

		writeJSON(w, `{"transactions": [
			{"hash": "`+hex.EncodeToString([]byte{1, 2, 3})+`", "lt": 500, "utime": 1700000000},
			{"hash": "`+hex.EncodeToString([]byte{4, 5, 6})+`", "lt": 400, "utime": 1699999000}
		]}`)
	})

	txs, err := c.GetTransactions(context.Background(), testAddr, 555, nil, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, uint64(500), txs[0].LT)
	assert.Equal(t, []byte{1, 2, 3}, txs[0].Hash)
	assert.Equal(t, uint32(1699999000), txs[1].Now)
}

func TestTonapiGetMasterchainInfo(t *testing.T) {
	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blockchain/masterchain-head", r.URL.Path)
		writeJSON(w, `{"workchain_id": -1, "shard": "8000000000000000", "seqno": 34501234,
			"root_hash": "`+hex.EncodeToString(make([]byte, 32))+`",
			"file_hash": "`+hex.EncodeToString(make([]byte, 32))+`"}`)
	})

	info, err := c.GetMasterchainInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(-1), info.Workchain)
	assert.Equal(t, int64(-9223372036854775808), info.Shard)
	assert.Equal(t, uint32(34501234), info.Seqno)
}

func TestTonapiGetConfigParam(t *testing.T) {
	param := cell.BeginCell().MustStoreUInt(0xABCD, 16).EndCell()
	dict := cell.NewDict(32)
	require.NoError(t, dict.SetIntKey(big.NewInt(4), cell.BeginCell().MustStoreRef(param).EndCell()))
	root := cell.BeginCell().MustStoreDict(dict).EndCell()

	// The raw config endpoint returns the whole dict, the param cell is
	// stored as a ref under its int32 id.
	c := newTestTonapi(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blockchain/config/raw", r.URL.Path)
		writeJSON(w, `{"config": "`+hex.EncodeToString(root.ToBOC())+`"}`)
	})

	got, err := c.GetConfigParam(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, param.Hash(), got.Hash())
}
