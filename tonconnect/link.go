package tonconnect

import (
	"encoding/json"
	"net/url"
	"strings"
)

const (
	protocolVersion       = "2"
	standardUniversalLink = "tc://"
)

// connectRequest is the r parameter of a universal link.
type connectRequest struct {
	ManifestURL string               `json:"manifestUrl"`
	Items       []connectRequestItem `json:"items"`
}

type connectRequestItem struct {
	Name    string `json:"name"`
	Payload string `json:"payload,omitempty"`
}

func newConnectRequest(manifestURL, proofPayload string) connectRequest {
	items := []connectRequestItem{{Name: "ton_addr"}}
	if proofPayload != "" {
		items = append(items, connectRequestItem{Name: "ton_proof", Payload: proofPayload})
	}
	return connectRequest{ManifestURL: manifestURL, Items: items}
}

// buildUniversalLink renders the wallet link carrying the connect
// request. Telegram wallet links get the request wrapped into a
// startapp parameter instead of plain query parameters.
func buildUniversalLink(base string, req connectRequest, sessionID, redirectURL string) (string, error) {
	if base == "" {
		base = standardUniversalLink
	}
	if isTelegramURL(base) {
		return buildTelegramLink(base, req, sessionID, redirectURL)
	}
	return buildRegularLink(base, req, sessionID, redirectURL)
}

func buildRegularLink(base string, req connectRequest, sessionID, redirectURL string) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("v", protocolVersion)
	q.Set("id", sessionID)
	q.Set("r", string(payload))
	if redirectURL != "" {
		q.Set("ret", redirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildTelegramLink(base string, req connectRequest, sessionID, redirectURL string) (string, error) {
	wrapped, err := buildRegularLink("about:blank", req, sessionID, redirectURL)
	if err != nil {
		return "", err
	}
	inner, err := url.Parse(wrapped)
	if err != nil {
		return "", err
	}
	startapp := "tonconnect-" + encodeTelegramParams(inner.RawQuery)

	u, err := url.Parse(toDirectLink(base))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("startapp", startapp)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isTelegramURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Scheme == "tg" || u.Hostname() == "t.me"
}

// encodeTelegramParams rewrites a query string into the character set
// Telegram accepts inside startapp. The replacements run in order, so
// percent escapes produced by the first three rules collapse into the
// double-dash form.
func encodeTelegramParams(params string) string {
	params = strings.ReplaceAll(params, ".", "%2E")
	params = strings.ReplaceAll(params, "-", "%2D")
	params = strings.ReplaceAll(params, "_", "%5F")
	params = strings.ReplaceAll(params, "&", "-")
	params = strings.ReplaceAll(params, "=", "__")
	params = strings.ReplaceAll(params, "%", "--")
	return params
}

func decodeTelegramParams(params string) string {
	params = strings.ReplaceAll(params, "--", "%")
	params = strings.ReplaceAll(params, "__", "=")
	params = strings.ReplaceAll(params, "-", "&")
	params = strings.ReplaceAll(params, "%5F", "_")
	params = strings.ReplaceAll(params, "%2D", "-")
	params = strings.ReplaceAll(params, "%2E", ".")
	return params
}

// toDirectLink converts a Telegram attach-menu link into a direct bot
// link with a /start path.
func toDirectLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	if q.Has("attach") {
		q.Del("attach")
		u.Path = strings.TrimRight(u.Path, "/") + "/start"
		u.RawQuery = q.Encode()
		return u.String()
	}
	return link
}
