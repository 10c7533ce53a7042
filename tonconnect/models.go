package tonconnect

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xssnick/tonutils-go/address"

	"tonkit/client"
)

// WalletApp describes an entry of the public wallets catalogue.
type WalletApp struct {
	AppName      string   `json:"app_name"`
	Name         string   `json:"name"`
	Image        string   `json:"image"`
	BridgeURL    string   `json:"bridge_url"`
	AboutURL     string   `json:"about_url,omitempty"`
	UniversalURL string   `json:"universal_url,omitempty"`
	DeepLink     string   `json:"deepLink,omitempty"`
	Platforms    []string `json:"platforms,omitempty"`
	TonDNS       string   `json:"tondns,omitempty"`
}

// UnmarshalJSON accepts both the catalogue form, where bridges come as
// a list of typed entries, and the flat bridge_url form used when
// storing a connection. The SSE bridge is the only transport this
// package speaks, so its url wins.
func (w *WalletApp) UnmarshalJSON(data []byte) error {
	type walletApp WalletApp
	var raw struct {
		walletApp
		Bridge []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"bridge"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = WalletApp(raw.walletApp)
	if w.BridgeURL == "" {
		for _, b := range raw.Bridge {
			if b.Type == "sse" {
				w.BridgeURL = b.URL
				break
			}
		}
	}
	return nil
}

// DeviceInfo is the device section of a wallet connect event.
type DeviceInfo struct {
	Platform           string    `json:"platform"`
	AppName            string    `json:"appName"`
	AppVersion         string    `json:"appVersion"`
	MaxProtocolVersion int       `json:"maxProtocolVersion"`
	Features           []Feature `json:"features"`
}

// Feature is one entry of the device features list. Old wallets send
// bare strings, new ones send objects, so it keeps both shapes.
type Feature struct {
	Name        string
	MaxMessages int
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Name = s
		return nil
	}
	var obj struct {
		Name        string `json:"name"`
		MaxMessages int    `json:"maxMessages"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Name = obj.Name
	f.MaxMessages = obj.MaxMessages
	return nil
}

func (f Feature) MarshalJSON() ([]byte, error) {
	if f.MaxMessages == 0 {
		return json.Marshal(f.Name)
	}
	return json.Marshal(struct {
		Name        string `json:"name"`
		MaxMessages int    `json:"maxMessages"`
	}{f.Name, f.MaxMessages})
}

// SupportsSendTransaction reports whether the device can serve a
// SendTransaction request with the given message count.
func (d *DeviceInfo) SupportsSendTransaction(messages int) bool {
	for _, f := range d.Features {
		if f.Name != "SendTransaction" {
			continue
		}
		if f.MaxMessages == 0 {
			return true
		}
		return messages <= f.MaxMessages
	}
	return false
}

// Account is the ton_addr item of a connect event.
type Account struct {
	Address         string         `json:"address"`
	Network         client.Network `json:"network,string"`
	WalletStateInit string         `json:"walletStateInit"`
	PublicKey       string         `json:"publicKey"`
}

// ParseAddress returns the account address in parsed form.
func (a *Account) ParseAddress() (*address.Address, error) {
	return address.ParseRawAddr(a.Address)
}

// ProofDomain is the dapp domain a proof was signed over.
type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// TonProof is the ton_proof item of a connect event.
type TonProof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`
	Signature string      `json:"signature"`
}

// SignatureBytes decodes the base64 signature.
func (p *TonProof) SignatureBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Signature)
}

// WalletInfo is the parsed result of a successful wallet connection.
type WalletInfo struct {
	Device  *DeviceInfo `json:"device,omitempty"`
	Account *Account    `json:"account,omitempty"`
	Proof   *TonProof   `json:"proof,omitempty"`
}

// connectEventPayload mirrors the connect event JSON sent by wallets.
type connectEventPayload struct {
	Device *DeviceInfo       `json:"device"`
	Items  []json.RawMessage `json:"items"`
}

// parseWalletInfo assembles a WalletInfo from a raw connect event
// payload.
func parseWalletInfo(raw json.RawMessage) (*WalletInfo, error) {
	var payload connectEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	info := &WalletInfo{Device: payload.Device}
	for _, item := range payload.Items {
		var head struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, err
		}
		switch head.Name {
		case "ton_addr":
			var acc Account
			if err := json.Unmarshal(item, &acc); err != nil {
				return nil, err
			}
			info.Account = &acc
		case "ton_proof":
			var wrapped struct {
				Proof TonProof `json:"proof"`
			}
			if err := json.Unmarshal(item, &wrapped); err != nil {
				return nil, err
			}
			info.Proof = &wrapped.Proof
		}
	}
	return info, nil
}

// Message is a single outgoing message of a transaction request.
type Message struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload,omitempty"`
	StateInit string `json:"stateInit,omitempty"`
}

// Transaction is the parameter object of a SendTransaction request.
type Transaction struct {
	From       string    `json:"from,omitempty"`
	Network    string    `json:"network,omitempty"`
	ValidUntil int64     `json:"valid_until,omitempty"`
	Messages   []Message `json:"messages"`
}

// SendTransactionResult carries the external message BOC returned by
// the wallet after it signed and sent the transaction.
type SendTransactionResult struct {
	BOC string `json:"boc"`
}

// walletEvent is the envelope of every bridge message sent by wallets.
type walletEvent struct {
	Event   string          `json:"event,omitempty"`
	ID      json.Number     `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// RPC response fields share the envelope with events.
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *walletEvent) eventID() int64 {
	n, err := strconv.ParseInt(e.ID.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// eventError extracts the error payload of an error event.
func (e *walletEvent) eventError() *Error {
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return NewError(CodeUnknown, "")
	}
	return NewError(payload.Code, payload.Message)
}

// connection is the stored connection record.
type connection struct {
	Type string `json:"type"`

	Session struct {
		PrivateKey      string `json:"session_private_key"`
		WalletPublicKey string `json:"wallet_public_key,omitempty"`
		BridgeURL       string `json:"bridge_url"`
	} `json:"session"`

	LastWalletEventID *int64          `json:"last_wallet_event_id,omitempty"`
	ConnectEvent      json.RawMessage `json:"connect_event,omitempty"`
	NextRPCRequestID  int64           `json:"next_rpc_request_id"`
	WalletApp         *WalletApp      `json:"wallet_app,omitempty"`
	UpdatedAt         int64           `json:"updated_at,omitempty"`
}

func parseConnection(raw string) (*connection, error) {
	var c connection
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("parse stored connection: %w", err)
	}
	return &c, nil
}

func (c *connection) encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
