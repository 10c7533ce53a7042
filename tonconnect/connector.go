package tonconnect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	// connectTimeout bounds how long WaitConnect blocks by default.
	connectTimeout = 300 * time.Second
	// disconnectTimeout bounds the wallet's acknowledgement of a
	// disconnect request.
	disconnectTimeout = 600 * time.Second
	// defaultTxLifetime is applied when a transaction has no
	// valid_until of its own.
	defaultTxLifetime = 300 * time.Second
)

// rpcOutcome is the resolution of one pending wallet request.
type rpcOutcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest tracks one in-flight wallet request together with the
// deadline it was sent with.
type pendingRequest struct {
	ch       chan rpcOutcome
	deadline time.Time
}

// Connector drives the TonConnect lifecycle for a single user: one
// bridge session, one connected wallet, and the pending RPC requests
// in flight to it.
type Connector struct {
	log         zerolog.Logger
	userID      string
	storage     Storage
	manifestURL string
	redirectURL string
	apiTokens   map[string]string

	// onDisconnect fires on wallet-initiated disconnects and bridge
	// death, not on explicit Disconnect calls.
	onDisconnect func(userID string)

	mu           sync.Mutex
	session      *Session
	bridge       *bridge
	app          *WalletApp
	wallet       *WalletInfo
	connectEvent json.RawMessage
	lastEventID  *int64
	nextRPCID    int64
	pending      map[int64]*pendingRequest
	connectCh    chan rpcOutcome
}

func newConnector(log zerolog.Logger, userID string, storage Storage, manifestURL, redirectURL string, apiTokens map[string]string, onDisconnect func(string)) *Connector {
	return &Connector{
		log:          log.With().Str("user_id", userID).Logger(),
		userID:       userID,
		storage:      storage,
		manifestURL:  manifestURL,
		redirectURL:  redirectURL,
		apiTokens:    apiTokens,
		onDisconnect: onDisconnect,
		pending:      make(map[int64]*pendingRequest),
	}
}

// UserID returns the user this connector belongs to.
func (c *Connector) UserID() string { return c.userID }

// Connected reports whether a wallet finished the handshake.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallet != nil
}

// Wallet returns the connected wallet info, or nil.
func (c *Connector) Wallet() *WalletInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallet
}

// Account returns the connected account, or nil.
func (c *Connector) Account() *Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet == nil {
		return nil
	}
	return c.wallet.Account
}

// ConnectOption tweaks a ConnectWallet call.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	proofPayload string
	redirectURL  string
}

// WithProofPayload requests a ton_proof signature over payload during
// the handshake.
func WithProofPayload(payload string) ConnectOption {
	return func(o *connectOptions) { o.proofPayload = payload }
}

// WithRedirectURL overrides the post-connect return URL.
func WithRedirectURL(u string) ConnectOption {
	return func(o *connectOptions) { o.redirectURL = u }
}

// ConnectWallet opens a fresh bridge session for app and returns the
// universal link the user must open in the wallet. Follow up with
// WaitConnect to obtain the handshake result.
func (c *Connector) ConnectWallet(ctx context.Context, app *WalletApp, opts ...ConnectOption) (string, error) {
	o := &connectOptions{redirectURL: c.redirectURL}
	for _, fn := range opts {
		fn(o)
	}

	c.mu.Lock()
	if c.wallet != nil {
		c.mu.Unlock()
		return "", ErrAlreadyConnected
	}
	if c.bridge != nil {
		c.bridge.close()
		c.bridge = nil
	}

	session, err := NewSession()
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.session = session
	c.app = app
	c.connectEvent = nil
	c.lastEventID = nil
	c.nextRPCID = 0
	c.connectCh = make(chan rpcOutcome, 1)

	b := newBridge(c.log, app.BridgeURL, session, c.storage, c.userID, bridgeToken(app.BridgeURL, c.apiTokens))
	b.onEvent = c.handleEnvelope
	b.onDead = c.handleBridgeDeath
	c.bridge = b
	c.mu.Unlock()

	if err := c.saveConnection(ctx); err != nil {
		return "", err
	}
	// The listener must outlive the ConnectWallet call.
	b.start(context.Background())

	req := newConnectRequest(c.manifestURL, o.proofPayload)
	link := app.UniversalURL
	if link == "" {
		link = app.DeepLink
	}
	return buildUniversalLink(link, req, session.ID(), o.redirectURL)
}

// WaitConnect blocks until the wallet completes or rejects the
// handshake. A missing wallet response times out with a request
// timeout error.
func (c *Connector) WaitConnect(ctx context.Context) (*WalletInfo, error) {
	c.mu.Lock()
	ch := c.connectCh
	c.mu.Unlock()
	if ch == nil {
		return nil, ErrNotConnected
	}

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, NewError(CodeRequestTimeout, "")
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		c.mu.Lock()
		wallet := c.wallet
		c.mu.Unlock()
		return wallet, nil
	}
}

// RestoreConnection rebuilds the connector state from storage and
// resubscribes to the bridge. Returns ErrNoConnection when nothing is
// stored.
func (c *Connector) RestoreConnection(ctx context.Context) error {
	raw, err := c.storage.Get(ctx, storageKey(c.userID, keyConnection))
	if err != nil {
		if err == ErrStorageKeyNotFound {
			return ErrNoConnection
		}
		return err
	}
	conn, err := parseConnection(raw)
	if err != nil {
		return err
	}

	session, err := SessionFromKey(conn.Session.PrivateKey, conn.Session.WalletPublicKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.app = conn.WalletApp
	c.lastEventID = conn.LastWalletEventID
	c.nextRPCID = conn.NextRPCRequestID
	c.connectCh = make(chan rpcOutcome, 1)
	if len(conn.ConnectEvent) > 0 {
		info, err := parseWalletInfo(conn.ConnectEvent)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.wallet = info
		c.connectEvent = conn.ConnectEvent
	}
	if c.bridge != nil {
		c.bridge.close()
	}
	b := newBridge(c.log, conn.Session.BridgeURL, session, c.storage, c.userID, bridgeToken(conn.Session.BridgeURL, c.apiTokens))
	b.onEvent = c.handleEnvelope
	b.onDead = c.handleBridgeDeath
	c.bridge = b
	c.mu.Unlock()

	b.start(context.Background())
	return nil
}

// Pause stops listening to the bridge without dropping the session.
func (c *Connector) Pause() {
	c.mu.Lock()
	b := c.bridge
	c.mu.Unlock()
	if b != nil {
		b.pause()
	}
}

// Resume restarts the bridge listener after Pause.
func (c *Connector) Resume() {
	c.mu.Lock()
	b := c.bridge
	c.mu.Unlock()
	if b != nil {
		b.start(context.Background())
	}
}

// Disconnect asks the wallet to drop the session, then wipes local
// state regardless of the wallet's answer.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	connected := c.wallet != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	id, ch, err := c.sendRequest(ctx, "disconnect", nil, disconnectTimeout)
	if err != nil {
		c.cleanup(ctx)
		return err
	}

	timer := time.NewTimer(disconnectTimeout)
	defer timer.Stop()
	defer c.cleanup(ctx)

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return NewError(CodeRequestTimeout, "")
	case out := <-ch:
		return out.err
	}
}

// SendTransaction submits a transaction request to the wallet and
// returns the request id for WaitTransaction.
func (c *Connector) SendTransaction(ctx context.Context, tx *Transaction) (int64, error) {
	c.mu.Lock()
	wallet := c.wallet
	c.mu.Unlock()
	if wallet == nil {
		return 0, ErrNotConnected
	}
	if wallet.Device != nil && !wallet.Device.SupportsSendTransaction(len(tx.Messages)) {
		return 0, fmt.Errorf("%w: SendTransaction with %d messages", ErrFeatureNotSupported, len(tx.Messages))
	}

	// Defaults go into a copy so a reused request object keeps the
	// values the caller set.
	req := *tx
	if req.ValidUntil == 0 {
		req.ValidUntil = time.Now().Add(defaultTxLifetime).Unix()
	}
	if req.From == "" && wallet.Account != nil {
		req.From = wallet.Account.Address
	}
	if req.Network == "" && wallet.Account != nil {
		req.Network = strconv.Itoa(int(wallet.Account.Network))
	}

	ttl := time.Until(time.Unix(req.ValidUntil, 0))
	if ttl <= 0 {
		ttl = defaultTxLifetime
	}

	params, err := json.Marshal(&req)
	if err != nil {
		return 0, err
	}
	id, _, err := c.sendRequest(ctx, "sendTransaction", []string{string(params)}, ttl)
	return id, err
}

// WaitTransaction blocks until the wallet resolves the request id
// returned by SendTransaction, or until the request's valid_until
// deadline passes.
func (c *Connector) WaitTransaction(ctx context.Context, id int64) (*SendTransactionResult, error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tonconnect: unknown request id %d", id)
	}

	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return nil, NewError(CodeRequestTimeout, "")
	case out := <-p.ch:
		if out.err != nil {
			return nil, out.err
		}
		return parseTransactionResult(out.result)
	}
}

// parseTransactionResult accepts both wire shapes: a bare BOC string
// and an object with a boc field.
func parseTransactionResult(raw json.RawMessage) (*SendTransactionResult, error) {
	var boc string
	if err := json.Unmarshal(raw, &boc); err == nil {
		return &SendTransactionResult{BOC: boc}, nil
	}
	var res SendTransactionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("parse transaction result: %w", err)
	}
	return &res, nil
}

// SendTransfer submits a single TON transfer, amount in nanotons, with
// an optional text comment.
func (c *Connector) SendTransfer(ctx context.Context, to string, amount string, comment string) (int64, error) {
	msg, err := transferMessage(to, amount, comment)
	if err != nil {
		return 0, err
	}
	return c.SendTransaction(ctx, &Transaction{Messages: []Message{msg}})
}

// SendBatchTransfer submits several transfers in one wallet request.
func (c *Connector) SendBatchTransfer(ctx context.Context, transfers []Message) (int64, error) {
	return c.SendTransaction(ctx, &Transaction{Messages: transfers})
}

func transferMessage(to, amount, comment string) (Message, error) {
	msg := Message{Address: to, Amount: amount}
	if comment != "" {
		body := cell.BeginCell().
			MustStoreUInt(0, 32).
			MustStoreStringSnake(comment).
			EndCell()
		msg.Payload = base64.StdEncoding.EncodeToString(body.ToBOC())
	}
	return msg, nil
}

// sendRequest assigns the next rpc id, persists it, registers the
// pending channel and ships the encrypted request to the wallet.
func (c *Connector) sendRequest(ctx context.Context, method string, params []string, ttl time.Duration) (int64, chan rpcOutcome, error) {
	c.mu.Lock()
	if c.session == nil || c.session.WalletKey == nil || c.bridge == nil {
		c.mu.Unlock()
		return 0, nil, ErrNotConnected
	}
	c.nextRPCID++
	id := c.nextRPCID
	ch := make(chan rpcOutcome, 1)
	c.pending[id] = &pendingRequest{ch: ch, deadline: time.Now().Add(ttl)}
	b := c.bridge
	receiver := walletSessionID(c.session)
	c.mu.Unlock()

	if err := c.saveConnection(ctx); err != nil {
		c.dropPending(id)
		return 0, nil, err
	}

	if params == nil {
		params = []string{}
	}
	payload, err := json.Marshal(struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     string   `json:"id"`
	}{method, params, strconv.FormatInt(id, 10)})
	if err != nil {
		c.dropPending(id)
		return 0, nil, err
	}

	if err := b.send(ctx, payload, receiver, method, ttl); err != nil {
		c.dropPending(id)
		return 0, nil, err
	}
	return id, ch, nil
}

func walletSessionID(s *Session) string {
	if s.WalletKey == nil {
		return ""
	}
	return fmt.Sprintf("%x", s.WalletKey[:])
}

func (c *Connector) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// handleEnvelope decrypts one bridge payload and routes it to the
// handshake channel, a pending request, or the disconnect path.
func (c *Connector) handleEnvelope(env bridgeEnvelope) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return
	}

	raw, err := session.DecryptFrom(env.Message, env.From)
	if err != nil {
		c.log.Warn().Err(err).Msg("undecryptable bridge message")
		return
	}

	var event walletEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.log.Warn().Err(err).Msg("malformed wallet message")
		return
	}

	if event.Event == "" {
		c.resolvePending(&event)
		return
	}

	id := event.eventID()
	c.mu.Lock()
	// Wallets may redeliver events after reconnects; ids are
	// monotonic per session, connect being the session start.
	if event.Event != "connect" && c.lastEventID != nil && id <= *c.lastEventID {
		c.mu.Unlock()
		c.log.Debug().Int64("event_id", id).Msg("duplicate wallet event dropped")
		return
	}
	c.lastEventID = &id
	c.mu.Unlock()

	ctx := context.Background()
	switch event.Event {
	case "connect":
		c.handleConnect(ctx, &event, env.From)
	case "connect_error":
		c.deliverConnect(rpcOutcome{err: event.eventError()})
		c.cleanup(ctx)
	case "disconnect":
		c.cleanup(ctx)
		if c.onDisconnect != nil {
			c.onDisconnect(c.userID)
		}
	default:
		c.log.Warn().Str("event", event.Event).Msg("unknown wallet event")
		if err := c.saveConnection(ctx); err != nil {
			c.log.Warn().Err(err).Msg("persist connection state")
		}
	}
}

func (c *Connector) handleConnect(ctx context.Context, event *walletEvent, from string) {
	info, err := parseWalletInfo(event.Payload)
	if err != nil {
		c.deliverConnect(rpcOutcome{err: fmt.Errorf("parse connect event: %w", err)})
		return
	}

	c.mu.Lock()
	if err := c.session.SetWalletKey(from); err != nil {
		c.mu.Unlock()
		c.deliverConnect(rpcOutcome{err: err})
		return
	}
	c.wallet = info
	c.connectEvent = event.Payload
	c.mu.Unlock()

	// Persist before unblocking WaitConnect so a restore immediately
	// after the handshake sees the session.
	if err := c.saveConnection(ctx); err != nil {
		c.log.Warn().Err(err).Msg("persist connection state")
	}
	c.deliverConnect(rpcOutcome{})
}

func (c *Connector) deliverConnect(out rpcOutcome) {
	c.mu.Lock()
	ch := c.connectCh
	c.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- out:
	default:
	}
}

func (c *Connector) resolvePending(event *walletEvent) {
	id := event.eventID()
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Int64("request_id", id).Msg("wallet response without pending request")
		return
	}
	if event.Error != nil {
		p.ch <- rpcOutcome{err: NewError(event.Error.Code, event.Error.Message)}
		return
	}
	p.ch <- rpcOutcome{result: event.Result}
}

func (c *Connector) handleBridgeDeath(err error) {
	c.log.Error().Err(err).Msg("bridge dead, dropping session")
	c.cleanup(context.Background())
	if c.onDisconnect != nil {
		c.onDisconnect(c.userID)
	}
}

// cleanup wipes local and stored session state and fails all pending
// requests.
func (c *Connector) cleanup(ctx context.Context) {
	c.mu.Lock()
	b := c.bridge
	c.bridge = nil
	c.session = nil
	c.wallet = nil
	c.app = nil
	c.connectEvent = nil
	c.lastEventID = nil
	c.nextRPCID = 0
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		select {
		case p.ch <- rpcOutcome{err: ErrNotConnected}:
		default:
		}
	}
	if b != nil {
		b.close()
	}
	if err := c.storage.Remove(ctx, storageKey(c.userID, keyConnection)); err != nil {
		c.log.Warn().Err(err).Msg("remove stored connection")
	}
	if err := c.storage.Remove(ctx, storageKey(c.userID, keyLastEventID)); err != nil {
		c.log.Warn().Err(err).Msg("remove stored event id")
	}
}

// saveConnection snapshots the connector into storage.
func (c *Connector) saveConnection(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	var conn connection
	conn.Type = "http"
	conn.Session.PrivateKey = c.session.PrivateKeyHex()
	if c.session.WalletKey != nil {
		conn.Session.WalletPublicKey = walletSessionID(c.session)
	}
	if c.app != nil {
		conn.Session.BridgeURL = c.app.BridgeURL
		conn.WalletApp = c.app
	} else if c.bridge != nil {
		conn.Session.BridgeURL = c.bridge.baseURL
	}
	conn.LastWalletEventID = c.lastEventID
	conn.ConnectEvent = c.connectEvent
	conn.NextRPCRequestID = c.nextRPCID
	conn.UpdatedAt = time.Now().Unix()
	c.mu.Unlock()

	raw, err := conn.encode()
	if err != nil {
		return err
	}
	return c.storage.Set(ctx, storageKey(c.userID, keyConnection), raw)
}
