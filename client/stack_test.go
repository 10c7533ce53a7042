package client

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

func TestEncodeStack(t *testing.T) {
	c := cell.BeginCell().MustStoreUInt(42, 32).EndCell()

	out, err := encodeStack([]any{big.NewInt(255), c, c.BeginParse()})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, [2]any{"num", "0xff"}, out[0])
	assert.Equal(t, "cell", out[1][0])
	assert.Equal(t, base64.StdEncoding.EncodeToString(c.ToBOC()), out[1][1])
	assert.Equal(t, "slice", out[2][0])
}

func TestEncodeStackRejectsUnknownType(t *testing.T) {
	_, err := encodeStack([]any{"nope"})
	require.Error(t, err)
}

func TestDecodeStack(t *testing.T) {
	c := cell.BeginCell().MustStoreUInt(7, 8).EndCell()
	b64 := base64.StdEncoding.EncodeToString(c.ToBOC())

	raw := []json.RawMessage{
		json.RawMessage(`["num", "0x10"]`),
		json.RawMessage(`["num", "-0x5"]`),
		json.RawMessage(`["num", "12345"]`),
		json.RawMessage(`["cell", {"bytes": "` + b64 + `"}]`),
		json.RawMessage(`["slice", "` + b64 + `"]`),
		json.RawMessage(`["null", ""]`),
	}

	items, err := decodeStack(raw)
	require.NoError(t, err)
	require.Len(t, items, 6)

	assert.Equal(t, int64(16), items[0].(*big.Int).Int64())
	assert.Equal(t, int64(-5), items[1].(*big.Int).Int64())
	assert.Equal(t, int64(12345), items[2].(*big.Int).Int64())

	got, ok := items[3].(*cell.Cell)
	require.True(t, ok)
	assert.Equal(t, c.Hash(), got.Hash())

	_, ok = items[4].(*cell.Slice)
	assert.True(t, ok)
	assert.Nil(t, items[5])
}

func TestDecodeStackInvalid(t *testing.T) {
	_, err := decodeStack([]json.RawMessage{json.RawMessage(`["num"]`)})
	require.Error(t, err)

	_, err = decodeStack([]json.RawMessage{json.RawMessage(`["tuple", []]`)})
	require.Error(t, err)
}

func TestResultGetters(t *testing.T) {
	addr := address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	addrCell := cell.BeginCell().MustStoreAddr(addr).EndCell()

	res := NewResult([]any{
		big.NewInt(99),
		addrCell.BeginParse(),
		nil,
	})

	require.Equal(t, 3, res.Len())

	n, err := res.Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(99), n.Int64())

	got, err := res.Address(1)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), got.String())

	c, err := res.Cell(2)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = res.Int(1)
	assert.Error(t, err)
	_, err = res.Int(5)
	assert.Error(t, err)
}

func TestNormalizeParams(t *testing.T) {
	addr := address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")

	out, err := normalizeParams([]any{1, int64(2), uint64(3), big.NewInt(4), addr})
	require.NoError(t, err)
	require.Len(t, out, 5)

	for i, want := range []int64{1, 2, 3, 4} {
		assert.Equal(t, want, out[i].(*big.Int).Int64())
	}

	s, ok := out[4].(*cell.Slice)
	require.True(t, ok)
	got, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, addr.String(), got.String())

	_, err = normalizeParams([]any{3.14})
	require.Error(t, err)
}
