package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"tonkit/client"
)

func TestFromMnemonicDeterministic(t *testing.T) {
	seed := NewSeed()
	require.Len(t, seed, 24)

	w1, err := FromMnemonic(nil, seed, V4R2)
	require.NoError(t, err)
	w2, err := FromMnemonic(nil, seed, V4R2)
	require.NoError(t, err)

	assert.Equal(t, w1.Address().String(), w2.Address().String())
	assert.EqualValues(t, 0, w1.Address().Workchain())
	assert.Equal(t, w1.PublicKey(), w2.PublicKey())
}

func TestVersionsYieldDistinctAddresses(t *testing.T) {
	seed := NewSeed()

	seen := map[string]Version{}
	for _, v := range []Version{V3R2, V4R2, V5R1, HighloadV2R2} {
		w, err := FromMnemonic(nil, seed, v)
		require.NoError(t, err, "version %s", v)

		addr := w.Address().String()
		prev, dup := seen[addr]
		require.False(t, dup, "version %s collides with %s", v, prev)
		seen[addr] = v
	}
}

func TestDefaultVersionIsV5R1(t *testing.T) {
	seed := NewSeed()

	def, err := FromMnemonic(nil, seed, VersionDefault)
	require.NoError(t, err)
	v5, err := FromMnemonic(nil, seed, V5R1)
	require.NoError(t, err)

	assert.Equal(t, v5.Address().String(), def.Address().String())
	assert.Equal(t, V5R1, def.Version())
}

func TestUnsupportedVersion(t *testing.T) {
	_, err := FromMnemonic(nil, NewSeed(), Version("V9R9"))
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	w, seed, err := Generate(nil, V4R2)
	require.NoError(t, err)
	require.Len(t, seed, 24)

	again, err := FromMnemonic(nil, seed, V4R2)
	require.NoError(t, err)
	assert.Equal(t, w.Address().String(), again.Address().String())
}

func TestOfflineWalletRefusesNetworkOps(t *testing.T) {
	w, _, err := Generate(nil, V4R2)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = w.Balance(ctx)
	assert.ErrorIs(t, err, errOffline)
	_, err = w.Seqno(ctx)
	assert.ErrorIs(t, err, errOffline)
	err = w.Transfer(ctx, w.Address(), tlb.MustFromTON("1"), "hi")
	assert.ErrorIs(t, err, errOffline)
	err = w.BatchTransfer(ctx, []Message{{To: w.Address(), Amount: tlb.MustFromTON("1")}})
	assert.ErrorIs(t, err, errOffline)
}

func TestVersionConfigV5UsesNetworkID(t *testing.T) {
	cfgMain, err := versionConfig(V5R1, client.Mainnet)
	require.NoError(t, err)
	cfgTest, err := versionConfig(V5R1, client.Testnet)
	require.NoError(t, err)
	assert.NotEqual(t, cfgMain, cfgTest)
}

func TestTransferLink(t *testing.T) {
	to := address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")

	link := TransferLink{To: to, Amount: tlb.MustFromTON("1.5"), Text: "order 42"}
	got := link.URL()
	assert.Contains(t, got, "ton://transfer/"+to.String())
	assert.Contains(t, got, "amount=1500000000")
	assert.Contains(t, got, "text=order+42")

	app := link.AppURL()
	assert.Contains(t, app, "https://app.tonkeeper.com/transfer/"+to.String())
}

func TestTransferLinkBodyWinsOverText(t *testing.T) {
	to := address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
	body, err := CommentCell("payload")
	require.NoError(t, err)

	got := TransferLink{To: to, Text: "ignored", Body: body}.URL()
	assert.Contains(t, got, "bin=")
	assert.NotContains(t, got, "text=")
}
