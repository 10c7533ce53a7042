package tonconnect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/rs/zerolog"
)

const (
	defaultMessageTTL = 300 * time.Second

	reconnectAttempts = 5
	reconnectDelay    = 5 * time.Second

	postTimeout = 10 * time.Second
)

// bridgeEnvelope is one SSE data payload from the bridge.
type bridgeEnvelope struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// bridge maintains one SSE subscription to a wallet bridge and sends
// outgoing encrypted messages to it.
type bridge struct {
	log     zerolog.Logger
	baseURL string
	session *Session
	storage Storage
	userID  string
	token   string

	// stream is the long-lived SSE connection client; post goes
	// through heimdall with retries.
	stream *http.Client
	post   *httpclient.Client

	onEvent func(envelope bridgeEnvelope)
	// onDead fires after reconnect attempts are exhausted.
	onDead func(err error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// bridgeToken picks the API token whose key is a substring of the
// bridge URL. Tokens are keyed by bridge name ("tonapi", "telegram").
func bridgeToken(bridgeURL string, tokens map[string]string) string {
	for name, token := range tokens {
		if strings.Contains(bridgeURL, name) {
			return token
		}
	}
	return ""
}

func newBridge(log zerolog.Logger, baseURL string, session *Session, storage Storage, userID, token string) *bridge {
	return &bridge{
		log:     log.With().Str("bridge", baseURL).Logger(),
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		storage: storage,
		userID:  userID,
		token:   token,
		stream:  &http.Client{},
		post: httpclient.NewClient(
			httpclient.WithHTTPTimeout(postTimeout),
			httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(500*time.Millisecond, 100*time.Millisecond))),
			httpclient.WithRetryCount(3),
		),
	}
}

// start launches the SSE listener goroutine. Safe to call again after
// pause.
func (b *bridge) start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.listen(ctx, b.done)
}

// pause stops the SSE listener but keeps the session usable.
func (b *bridge) pause() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (b *bridge) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.pause()
}

func (b *bridge) listen(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := retry.Do(
		func() error { return b.subscribe(ctx) },
		retry.Context(ctx),
		retry.Attempts(reconnectAttempts),
		retry.Delay(reconnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.log.Warn().Err(err).Uint("attempt", n+1).Msg("bridge connection lost")
		}),
	)
	if ctx.Err() != nil {
		return
	}
	if b.onDead != nil {
		b.onDead(fmt.Errorf("bridge unreachable after %d attempts: %w", reconnectAttempts, err))
	}
}

// subscribe opens one SSE connection and pumps events until it fails
// or ctx is cancelled.
func (b *bridge) subscribe(ctx context.Context) error {
	q := url.Values{}
	q.Set("client_id", b.session.ID())
	if lastEventID, err := b.storage.Get(ctx, storageKey(b.userID, keyLastEventID)); err == nil && lastEventID != "" {
		q.Set("last_event_id", lastEventID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/events?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("bridge subscribe: unexpected status %d", resp.StatusCode)
	}

	b.log.Debug().Msg("bridge connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "id:"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			if err := b.storage.Set(ctx, storageKey(b.userID, keyLastEventID), id); err != nil {
				b.log.Warn().Err(err).Msg("persist last event id")
			}
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "heartbeat" {
				continue
			}
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(data), &env); err != nil {
				b.log.Warn().Err(err).Msg("malformed bridge event")
				continue
			}
			if b.onEvent != nil {
				b.onEvent(env)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("bridge stream ended")
}

// send seals msg for the wallet session identified by receiverID and
// posts it to the bridge.
func (b *bridge) send(ctx context.Context, msg []byte, receiverID, topic string, ttl time.Duration) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBridgeClosed
	}

	sealed, err := b.session.Encrypt(msg)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}

	q := url.Values{}
	q.Set("client_id", b.session.ID())
	q.Set("to", receiverID)
	q.Set("ttl", fmt.Sprintf("%d", int(ttl.Seconds())))
	if topic != "" {
		q.Set("topic", topic)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/message?"+q.Encode(), strings.NewReader(sealed))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.post.Do(req)
	if err != nil {
		return fmt.Errorf("bridge send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
