package tonconnect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonkit/client"
)

func TestFeatureUnmarshalBothShapes(t *testing.T) {
	var d DeviceInfo
	payload := `{
		"platform": "iphone",
		"appName": "Tonkeeper",
		"appVersion": "3.4.0",
		"maxProtocolVersion": 2,
		"features": ["SendTransaction", {"name": "SendTransaction", "maxMessages": 4}]
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &d))
	require.Len(t, d.Features, 2)
	assert.Equal(t, "SendTransaction", d.Features[0].Name)
	assert.Zero(t, d.Features[0].MaxMessages)
	assert.Equal(t, 4, d.Features[1].MaxMessages)
}

func TestSupportsSendTransaction(t *testing.T) {
	withLimit := &DeviceInfo{Features: []Feature{{Name: "SendTransaction", MaxMessages: 4}}}
	assert.True(t, withLimit.SupportsSendTransaction(4))
	assert.False(t, withLimit.SupportsSendTransaction(5))

	legacy := &DeviceInfo{Features: []Feature{{Name: "SendTransaction"}}}
	assert.True(t, legacy.SupportsSendTransaction(255))

	none := &DeviceInfo{Features: []Feature{{Name: "SignData"}}}
	assert.False(t, none.SupportsSendTransaction(1))
}

func TestParseWalletInfo(t *testing.T) {
	payload := `{
		"device": {"platform": "android", "appName": "Tonkeeper"},
		"items": [
			{
				"name": "ton_addr",
				"address": "0:1111111111111111111111111111111111111111111111111111111111111111",
				"network": "-239",
				"walletStateInit": "te6cc==",
				"publicKey": "aa"
			},
			{
				"name": "ton_proof",
				"proof": {
					"timestamp": 1700000000,
					"domain": {"lengthBytes": 12, "value": "dapp.example"},
					"payload": "abc",
					"signature": "c2ln"
				}
			}
		]
	}`
	info, err := parseWalletInfo(json.RawMessage(payload))
	require.NoError(t, err)
	require.NotNil(t, info.Account)
	assert.Equal(t, client.Mainnet, info.Account.Network)
	require.NotNil(t, info.Proof)
	assert.Equal(t, int64(1700000000), info.Proof.Timestamp)
	assert.Equal(t, "dapp.example", info.Proof.Domain.Value)

	sig, err := info.Proof.SignatureBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("sig"), sig)
}

func TestWalletEventID(t *testing.T) {
	var ev walletEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id": "17", "result": {}}`), &ev))
	assert.Equal(t, int64(17), ev.eventID())

	require.NoError(t, json.Unmarshal([]byte(`{"event": "connect", "id": 3}`), &ev))
	assert.Equal(t, int64(3), ev.eventID())
}

func TestConnectionRoundtrip(t *testing.T) {
	var conn connection
	conn.Type = "http"
	conn.Session.PrivateKey = "aa"
	conn.Session.BridgeURL = "https://bridge.example"
	conn.NextRPCRequestID = 7
	id := int64(3)
	conn.LastWalletEventID = &id
	conn.WalletApp = &WalletApp{AppName: "tonkeeper", BridgeURL: "https://bridge.example"}

	raw, err := conn.encode()
	require.NoError(t, err)

	parsed, err := parseConnection(raw)
	require.NoError(t, err)
	assert.Equal(t, conn.NextRPCRequestID, parsed.NextRPCRequestID)
	require.NotNil(t, parsed.LastWalletEventID)
	assert.Equal(t, id, *parsed.LastWalletEventID)
	assert.Equal(t, "tonkeeper", parsed.WalletApp.AppName)
}
