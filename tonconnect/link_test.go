package tonconnect

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegularLink(t *testing.T) {
	req := newConnectRequest("https://dapp.example/manifest.json", "abc123")
	link, err := buildUniversalLink("https://app.tonkeeper.com/ton-connect", req, "deadbeef", "back")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "2", q.Get("v"))
	assert.Equal(t, "deadbeef", q.Get("id"))
	assert.Equal(t, "back", q.Get("ret"))

	var parsed connectRequest
	require.NoError(t, json.Unmarshal([]byte(q.Get("r")), &parsed))
	assert.Equal(t, "https://dapp.example/manifest.json", parsed.ManifestURL)
	require.Len(t, parsed.Items, 2)
	assert.Equal(t, "ton_addr", parsed.Items[0].Name)
	assert.Equal(t, "ton_proof", parsed.Items[1].Name)
	assert.Equal(t, "abc123", parsed.Items[1].Payload)
}

func TestBuildLinkDefaultsToStandardScheme(t *testing.T) {
	req := newConnectRequest("https://dapp.example/manifest.json", "")
	link, err := buildUniversalLink("", req, "deadbeef", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "tc://"), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", u.Query().Get("id"))
}

func TestBuildTelegramLink(t *testing.T) {
	req := newConnectRequest("https://dapp.example/manifest.json", "")
	link, err := buildUniversalLink("https://t.me/wallet?attach=wallet", req, "deadbeef", "back")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/wallet/start", u.Path)
	assert.Empty(t, u.Query().Get("attach"))

	startapp := u.Query().Get("startapp")
	require.True(t, strings.HasPrefix(startapp, "tonconnect-"), startapp)

	decoded := decodeTelegramParams(strings.TrimPrefix(startapp, "tonconnect-"))
	q, err := url.ParseQuery(decoded)
	require.NoError(t, err)
	assert.Equal(t, "2", q.Get("v"))
	assert.Equal(t, "deadbeef", q.Get("id"))
}

func TestTelegramParamsEncoding(t *testing.T) {
	in := "v=2&id=dead-beef&r=%7B%22k%22%3A1%7D"
	encoded := encodeTelegramParams(in)
	assert.NotContains(t, encoded, "&")
	assert.NotContains(t, encoded, "=")
	assert.Equal(t, in, decodeTelegramParams(encoded))
}

func TestIsTelegramURL(t *testing.T) {
	assert.True(t, isTelegramURL("https://t.me/wallet"))
	assert.True(t, isTelegramURL("tg://resolve?domain=wallet"))
	assert.False(t, isTelegramURL("https://app.tonkeeper.com/ton-connect"))
	assert.False(t, isTelegramURL(""))
}
