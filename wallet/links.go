package wallet

import (
	"encoding/base64"
	"net/url"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// TransferLink describes a payment request rendered as a deeplink any
// wallet app can open.
type TransferLink struct {
	To     *address.Address
	Amount tlb.Coins
	// Text is a plain comment. Ignored when Body is set.
	Text string
	// Body is a prebuilt binary payload.
	Body *cell.Cell
}

// URL renders the ton://transfer deeplink.
func (l TransferLink) URL() string {
	return l.render("ton://transfer/")
}

// AppURL renders the https variant understood by Tonkeeper and most
// other wallets, usable where custom schemes are blocked.
func (l TransferLink) AppURL() string {
	return l.render("https://app.tonkeeper.com/transfer/")
}

func (l TransferLink) render(prefix string) string {
	query := url.Values{}
	if l.Amount.Nano() != nil && l.Amount.Nano().Sign() > 0 {
		query.Set("amount", l.Amount.Nano().String())
	}
	switch {
	case l.Body != nil:
		query.Set("bin", base64.URLEncoding.EncodeToString(l.Body.ToBOC()))
	case l.Text != "":
		query.Set("text", l.Text)
	}

	out := prefix + l.To.String()
	if len(query) > 0 {
		out += "?" + query.Encode()
	}
	return out
}
