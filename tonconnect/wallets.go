package tonconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"

	"tonkit/internal/pkg/caching"
)

// WalletsListURL is the public TonConnect wallets catalogue.
const WalletsListURL = "https://config.ton.org/wallets-v2.json"

const (
	walletsCacheKey = "tonconnect:wallets"
	walletsCacheTTL = 10 * time.Minute
)

// WalletsLoader fetches and filters the wallet apps catalogue.
type WalletsLoader struct {
	url          string
	fallbackFile string
	hc           *httpclient.Client
	cache        caching.Cache

	include []string
	exclude []string
	order   []string
}

// WalletsOption configures a WalletsLoader.
type WalletsOption func(*WalletsLoader)

// WithWalletsURL overrides the catalogue URL.
func WithWalletsURL(u string) WalletsOption {
	return func(l *WalletsLoader) { l.url = u }
}

// WithFallbackFile reads the catalogue from a local file when the
// network fetch fails.
func WithFallbackFile(path string) WalletsOption {
	return func(l *WalletsLoader) { l.fallbackFile = path }
}

// WithWalletsCache caches fetched catalogues.
func WithWalletsCache(c caching.Cache) WalletsOption {
	return func(l *WalletsLoader) { l.cache = c }
}

// WithIncludeWallets keeps only the named apps.
func WithIncludeWallets(appNames ...string) WalletsOption {
	return func(l *WalletsLoader) { l.include = appNames }
}

// WithExcludeWallets drops the named apps.
func WithExcludeWallets(appNames ...string) WalletsOption {
	return func(l *WalletsLoader) { l.exclude = appNames }
}

// WithWalletsOrder pins the named apps to the front of the list, in
// the given order.
func WithWalletsOrder(appNames ...string) WalletsOption {
	return func(l *WalletsLoader) { l.order = appNames }
}

func NewWalletsLoader(opts ...WalletsOption) *WalletsLoader {
	l := &WalletsLoader{
		url: WalletsListURL,
		hc: httpclient.NewClient(
			httpclient.WithHTTPTimeout(10*time.Second),
			httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(500*time.Millisecond, 100*time.Millisecond))),
			httpclient.WithRetryCount(3),
		),
	}
	for _, fn := range opts {
		fn(l)
	}
	return l
}

// Load returns the filtered wallet catalogue. Entries without a
// bridge URL cannot speak the HTTP bridge protocol and are dropped.
func (l *WalletsLoader) Load(ctx context.Context) ([]WalletApp, error) {
	fetch := func() ([]WalletApp, error) {
		apps, err := l.fetch(ctx)
		if err != nil && l.fallbackFile != "" {
			apps, err = l.readFallback()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchWallets, err)
		}
		return apps, nil
	}

	var (
		apps []WalletApp
		err  error
	)
	if l.cache != nil {
		apps, err = caching.UseCache(ctx, l.cache, walletsCacheKey, walletsCacheTTL, fetch)
	} else {
		apps, err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return l.filter(apps), nil
}

// FindByAppName returns a single catalogue entry by app_name.
func (l *WalletsLoader) FindByAppName(ctx context.Context, appName string) (*WalletApp, error) {
	apps, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].AppName == appName {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: app %q not in catalogue", ErrFetchWallets, appName)
}

func (l *WalletsLoader) fetch(ctx context.Context) ([]WalletApp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wallets catalogue: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseWalletApps(raw)
}

func (l *WalletsLoader) readFallback() ([]WalletApp, error) {
	raw, err := os.ReadFile(l.fallbackFile)
	if err != nil {
		return nil, err
	}
	return parseWalletApps(raw)
}

func parseWalletApps(raw []byte) ([]WalletApp, error) {
	var apps []WalletApp
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil, fmt.Errorf("parse wallets catalogue: %w", err)
	}
	usable := apps[:0]
	for _, app := range apps {
		if app.BridgeURL == "" {
			continue
		}
		usable = append(usable, app)
	}
	return usable, nil
}

func (l *WalletsLoader) filter(apps []WalletApp) []WalletApp {
	out := make([]WalletApp, 0, len(apps))
	for _, app := range apps {
		if len(l.include) > 0 && !containsName(l.include, app.AppName) {
			continue
		}
		if containsName(l.exclude, app.AppName) {
			continue
		}
		out = append(out, app)
	}
	if len(l.order) > 0 {
		rank := make(map[string]int, len(l.order))
		for i, name := range l.order {
			rank[name] = i
		}
		sort.SliceStable(out, func(i, j int) bool {
			ri, oki := rank[out[i].AppName]
			rj, okj := rank[out[j].AppName]
			switch {
			case oki && okj:
				return ri < rj
			case oki:
				return true
			default:
				return false
			}
		})
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
