package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrWSClosed is returned by subscriptions attempted after Close.
var ErrWSClosed = errors.New("websocket client closed")

// WSClientConfig configures WSClientImpl.
type WSClientConfig struct {
	// ReconnectDelay is the first pause before redialing. It doubles up to
	// MaxReconnectDelay and resets once a dial succeeds.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// PingInterval is how often a ping frame is sent. A missing pong within
	// ReadTimeout counts as a dropped connection.
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription reply.
	SubscribeTimeout time.Duration
	// BufferSize is the capacity of each notification channel.
	BufferSize int
	Logger     *log.Logger
}

// DefaultWSConfig returns the configuration used when NewWSClient gets nil.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    500 * time.Millisecond,
		MaxReconnectDelay: 15 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  15 * time.Second,
		BufferSize:        4096,
	}
}

// stream is one subscription as the caller sees it. It survives reconnects;
// only its server id changes.
type stream struct {
	method string
	params []interface{}
	id     int64
	kept   bool // listed in streams for replay
	push   func(slot int64, value json.RawMessage)
	finish func()
}

// WSClientImpl is a WebSocket subscription client that redials on connection
// loss and replays every subscription on the new connection.
type WSClientImpl struct {
	endpoint string
	cfg      WSClientConfig
	logger   *log.Logger
	dialer   websocket.Dialer

	connMu sync.Mutex // guards conn and serialises data frames
	conn   *websocket.Conn

	mu      sync.Mutex
	streams []*stream
	byID    map[int64]*stream
	replies map[uint64]*pendingReply

	ids    atomic.Uint64
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWSClient dials endpoint. A nil config selects DefaultWSConfig; zero
// fields of a custom config fall back to the defaults.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = withWSDefaults(*config)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		byID:     make(map[int64]*stream),
		replies:  make(map[uint64]*pendingReply),
		done:     make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.wg.Add(2)
	go c.supervise(conn)
	go c.keepalive()
	return c, nil
}

func withWSDefaults(cfg WSClientConfig) WSClientConfig {
	def := DefaultWSConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(def.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return cfg
}

func (c *WSClientImpl) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})
	return conn, nil
}

// SubscribeLogs streams transaction logs that mention any of filter.Mentions.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	var selector interface{} = "all"
	if len(filter.Mentions) > 0 {
		selector = map[string][]string{"mentions": filter.Mentions}
	}

	ch := make(chan LogNotification, c.cfg.BufferSize)
	s := &stream{
		method: "logsSubscribe",
		params: []interface{}{selector, map[string]string{"commitment": DefaultCommitment}},
		finish: func() { close(ch) },
	}
	s.push = func(slot int64, value json.RawMessage) {
		var v struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		}
		if err := json.Unmarshal(value, &v); err != nil {
			c.logger.Printf("[ws] bad logs notification: %v", err)
			return
		}
		select {
		case ch <- LogNotification{Signature: v.Signature, Slot: slot, Logs: v.Logs, Err: v.Err}:
		case <-c.done:
		}
	}

	if err := c.open(ctx, s); err != nil {
		return nil, err
	}
	return ch, nil
}

// SubscribeProgram streams changes to accounts owned by filter.ProgramID.
func (c *WSClientImpl) SubscribeProgram(ctx context.Context, filter ProgramFilter) (<-chan AccountNotification, error) {
	opts := map[string]interface{}{"commitment": DefaultCommitment, "encoding": "base64"}
	if filter.DataSize > 0 {
		opts["filters"] = []map[string]uint64{{"dataSize": filter.DataSize}}
	}

	ch := make(chan AccountNotification, c.cfg.BufferSize)
	s := &stream{
		method: "programSubscribe",
		params: []interface{}{filter.ProgramID, opts},
		finish: func() { close(ch) },
	}
	s.push = func(slot int64, value json.RawMessage) {
		var v keyedAccount
		if err := json.Unmarshal(value, &v); err != nil {
			c.logger.Printf("[ws] bad program notification: %v", err)
			return
		}
		select {
		case ch <- AccountNotification{Pubkey: v.Pubkey, Slot: slot, Account: v.Account.info()}:
		case <-c.done:
		}
	}

	if err := c.open(ctx, s); err != nil {
		return nil, err
	}
	return ch, nil
}

// pendingReply waits for the reply to one request. When bind is set the reply
// is a subscription id and the stream is registered under it before any
// notification for it can be read.
type pendingReply struct {
	ch   chan rpcResponse
	bind *stream
}

// open subscribes s on the current connection. Once confirmed, s is kept for
// replay.
func (c *WSClientImpl) open(ctx context.Context, s *stream) error {
	if _, err := c.request(ctx, s.method, s.params, s); err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrWSClosed
	}
	return nil
}

// request writes one JSON-RPC request and waits for the matching reply.
func (c *WSClientImpl) request(ctx context.Context, method string, params []interface{}, bind *stream) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrWSClosed
	}

	id := c.ids.Add(1)
	reply := &pendingReply{ch: make(chan rpcResponse, 1), bind: bind}
	c.mu.Lock()
	c.replies[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.replies, id)
		c.mu.Unlock()
	}()

	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	timer := time.NewTimer(c.cfg.SubscribeTimeout)
	defer timer.Stop()
	select {
	case r := <-reply.ch:
		if r.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, r.Error)
		}
		return r.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: no reply after %v", method, c.cfg.SubscribeTimeout)
	case <-c.done:
		return nil, ErrWSClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *WSClientImpl) write(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// supervise reads from conn until it fails, then redials with backoff and
// replays the open streams. It is the only reader of the connection.
func (c *WSClientImpl) supervise(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.readAll(conn)
		if c.closed.Load() {
			return
		}
		c.logger.Printf("[ws] connection to %s lost: %v", c.endpoint, err)

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()
		c.dropReplies()

		if conn = c.redial(); conn == nil {
			return
		}
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		// Replies to the replay arrive through readAll, so it cannot run inline.
		c.wg.Add(1)
		go c.replay()
	}
}

func (c *WSClientImpl) readAll(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(msg)
	}
}

// redial returns nil only when the client is closed.
func (c *WSClientImpl) redial() *websocket.Conn {
	delay := c.cfg.ReconnectDelay
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.MaxReconnectDelay+10*time.Second)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.logger.Printf("[ws] reconnected to %s", c.endpoint)
			return conn
		}
		c.logger.Printf("[ws] redial failed, next attempt in %v: %v", min(delay*2, c.cfg.MaxReconnectDelay), err)
		delay = min(delay*2, c.cfg.MaxReconnectDelay)
	}
}

// dropReplies fails requests that were in flight on a dead connection.
func (c *WSClientImpl) dropReplies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.replies {
		p.ch <- rpcResponse{ID: id, Error: &RPCError{Code: -1, Message: "connection lost"}}
		delete(c.replies, id)
	}
}

// replay resubscribes every stream and rebinds it to its new server id.
func (c *WSClientImpl) replay() {
	defer c.wg.Done()

	c.mu.Lock()
	streams := append([]*stream(nil), c.streams...)
	clear(c.byID)
	c.mu.Unlock()

	for _, s := range streams {
		_, err := c.request(context.Background(), s.method, s.params, s)
		if err != nil && !errors.Is(err, ErrWSClosed) {
			c.logger.Printf("[ws] resubscribe %s failed: %v", s.method, err)
		}
	}
}

// wsMessage covers both replies and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (c *WSClientImpl) dispatch(msg []byte) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		c.logger.Printf("[ws] undecodable message: %v", err)
		return
	}

	if m.Params != nil {
		c.mu.Lock()
		s := c.byID[m.Params.Subscription]
		c.mu.Unlock()
		if s != nil {
			s.push(m.Params.Result.Context.Slot, m.Params.Result.Value)
		}
		return
	}

	c.mu.Lock()
	p, ok := c.replies[m.ID]
	delete(c.replies, m.ID)
	if ok && p.bind != nil && m.Error == nil {
		var sub int64
		if err := json.Unmarshal(m.Result, &sub); err != nil {
			m.Error = &RPCError{Code: -1, Message: fmt.Sprintf("bad subscription id %s", m.Result)}
		} else {
			p.bind.id = sub
			c.byID[sub] = p.bind
			if !p.bind.kept {
				p.bind.kept = true
				c.streams = append(c.streams, p.bind)
			}
		}
	}
	c.mu.Unlock()
	if ok {
		p.ch <- rpcResponse{ID: m.ID, Result: m.Result, Error: m.Error}
	} else if m.Error != nil {
		c.logger.Printf("[ws] unsolicited error for request %d: %v", m.ID, m.Error)
	}
}

// keepalive pings the current connection. WriteControl may run concurrently
// with data frames.
func (c *WSClientImpl) keepalive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn != nil {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			}
		}
	}
}

// Close disconnects and closes every notification channel. It is idempotent.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.streams {
		s.finish()
	}
	c.streams = nil
	clear(c.byID)
	return nil
}

var _ WSClient = (*WSClientImpl)(nil)
