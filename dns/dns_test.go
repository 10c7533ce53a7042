package dns

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"tonkit/client"
)

var (
	rootAddr   = address.NewAddress(0, 0xFF, make([]byte, 32))
	walletAddr = address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")
)

func TestEncodeName(t *testing.T) {
	got, err := encodeName("site.ton")
	require.NoError(t, err)
	assert.Equal(t, []byte("ton\x00site\x00"), got)

	got, err = encodeName("Sub.Example.TON.")
	require.NoError(t, err)
	assert.Equal(t, []byte("ton\x00example\x00sub\x00"), got)

	_, err = encodeName("")
	assert.ErrorIs(t, err, ErrBadDomain)
	_, err = encodeName("a..b")
	assert.ErrorIs(t, err, ErrBadDomain)
}

func TestCategoryHash(t *testing.T) {
	assert.Zero(t, CategoryHash("").Sign())
	assert.NotEqual(t, CategoryHash(CategoryWallet), CategoryHash(CategorySite))
	assert.LessOrEqual(t, CategoryHash(CategoryWallet).BitLen(), 256)
}

// resolveFake scripts dnsresolve responses per resolver address.
type resolveFake struct {
	client.Client
	responses map[string]*client.Result
	calls     []string
}

func (f *resolveFake) RunGetMethod(ctx context.Context, addr *address.Address, method string, params ...any) (*client.Result, error) {
	f.calls = append(f.calls, addr.String())
	res, ok := f.responses[addr.String()]
	if !ok {
		return nil, &client.ExitCodeError{Method: method, Code: 11}
	}
	return res, nil
}

func TestResolveWallet(t *testing.T) {
	record := WalletRecordCell(walletAddr)
	fc := &resolveFake{responses: map[string]*client.Result{
		rootAddr.String(): client.NewResult([]any{
			big.NewInt(int64(len("ton\x00site\x00")) * 8),
			record,
		}),
	}}

	r := NewResolverWithRoot(fc, rootAddr)
	got, err := r.ResolveWallet(context.Background(), "site.ton")
	require.NoError(t, err)
	assert.Equal(t, walletAddr.String(), got.String())
}

func TestResolveFollowsNextResolver(t *testing.T) {
	subResolver := address.NewAddress(0, 0, appendByte(make([]byte, 31), 0x42))

	fc := &resolveFake{responses: map[string]*client.Result{
		// Root resolves only "ton\0" (4 bytes) and delegates.
		rootAddr.String(): client.NewResult([]any{
			big.NewInt(4 * 8),
			NextResolverRecordCell(subResolver),
		}),
		subResolver.String(): client.NewResult([]any{
			big.NewInt(int64(len("site\x00")) * 8),
			WalletRecordCell(walletAddr),
		}),
	}}

	r := NewResolverWithRoot(fc, rootAddr)
	got, err := r.ResolveWallet(context.Background(), "site.ton")
	require.NoError(t, err)
	assert.Equal(t, walletAddr.String(), got.String())
	require.Len(t, fc.calls, 2)
	assert.Equal(t, subResolver.String(), fc.calls[1])
}

func TestResolveNotFound(t *testing.T) {
	fc := &resolveFake{responses: map[string]*client.Result{
		rootAddr.String(): client.NewResult([]any{big.NewInt(0), nil}),
	}}

	r := NewResolverWithRoot(fc, rootAddr)
	_, err := r.Resolve(context.Background(), "missing.ton", CategoryWallet)
	assert.ErrorIs(t, err, ErrNotResolved)

	// Exit code from the resolver contract means the same thing.
	_, err = NewResolverWithRoot(&resolveFake{}, rootAddr).
		Resolve(context.Background(), "missing.ton", CategoryWallet)
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestResolveRejectsOverlongBitCount(t *testing.T) {
	// A hostile resolver may claim more resolved bits than the name has.
	for _, bits := range []int64{4096, int64(len("ton\x00site\x00"))*8 + 8, -8} {
		fc := &resolveFake{responses: map[string]*client.Result{
			rootAddr.String(): client.NewResult([]any{
				big.NewInt(bits),
				WalletRecordCell(walletAddr),
			}),
		}}

		_, err := NewResolverWithRoot(fc, rootAddr).
			Resolve(context.Background(), "site.ton", CategoryWallet)
		require.Error(t, err, "bits=%d", bits)
		assert.Contains(t, err.Error(), "resolved bits", "bits=%d", bits)
	}
}

func TestResolveSiteAndStorageTags(t *testing.T) {
	adnl := appendByte(make([]byte, 31), 0x07)

	fc := &resolveFake{responses: map[string]*client.Result{
		rootAddr.String(): client.NewResult([]any{
			big.NewInt(int64(len("ton\x00site\x00")) * 8),
			SiteRecordCell(adnl),
		}),
	}}
	r := NewResolverWithRoot(fc, rootAddr)

	got, err := r.ResolveSite(context.Background(), "site.ton")
	require.NoError(t, err)
	assert.Equal(t, adnl, got)

	// A site record is not a valid storage record.
	_, err = r.ResolveStorage(context.Background(), "site.ton")
	assert.Error(t, err)
}

func TestBuildSetRecordBody(t *testing.T) {
	value := WalletRecordCell(walletAddr)
	body := BuildSetRecordBody(5, CategoryWallet, value)

	s := body.BeginParse()
	op, _ := s.LoadUInt(32)
	assert.Equal(t, uint64(OpChangeRecord), op)
	queryID, _ := s.LoadUInt(64)
	assert.Equal(t, uint64(5), queryID)

	key, err := s.LoadBigUInt(256)
	require.NoError(t, err)
	assert.Equal(t, CategoryHash(CategoryWallet), key)

	ref, err := s.LoadRef()
	require.NoError(t, err)
	tag, _ := ref.LoadUInt(16)
	assert.EqualValues(t, tagSMCAddress, tag)

	// Deletion carries no value ref.
	del := BuildSetRecordBody(6, CategoryWallet, nil)
	assert.EqualValues(t, 0, del.RefsNum())
}

func appendByte(prefix []byte, b byte) []byte {
	out := make([]byte, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, b)
}
