package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradegate/internal/domain"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// MaxAge rejects cached snapshots older than this. Zero disables the check.
	MaxAge time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxAge:            15 * time.Minute,
	}
}

// WSClient subscribes to an indicator snapshot stream and serves the latest
// snapshot per instrument and timeframe from a local cache.
type WSClient struct {
	endpoint    string
	config      WSClientConfig
	instruments []string
	timeframes  []domain.Timeframe
	log         zerolog.Logger
	now         func() time.Time

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	cache   map[key]*cachedSnapshot
	cacheMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

type cachedSnapshot struct {
	snapshot   domain.IndicatorSnapshot
	receivedAt time.Time
}

// Compile-time interface check.
var _ IndicatorSource = (*WSClient)(nil)

// NewWSClient connects, subscribes to instruments x timeframes and starts
// the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, instruments []string, timeframes []domain.Timeframe, config *WSClientConfig, log zerolog.Logger) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint:    endpoint,
		config:      cfg,
		instruments: instruments,
		timeframes:  timeframes,
		log:         log.With().Str("component", "feed").Logger(),
		now:         time.Now,
		cache:       make(map[key]*cachedSnapshot),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.subscribe(); err != nil {
		c.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Fetch returns the cached snapshot for the key.
func (c *WSClient) Fetch(ctx context.Context, instrument string, tf domain.Timeframe) (*domain.IndicatorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.cacheMu.RLock()
	entry, ok := c.cache[keyOf(instrument, tf)]
	c.cacheMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, instrument, tf)
	}
	if c.config.MaxAge > 0 && c.now().Sub(entry.receivedAt) > c.config.MaxAge {
		return nil, fmt.Errorf("%w: %s %s received %s", ErrStale, instrument, tf, entry.receivedAt.Format(time.RFC3339))
	}
	snap := entry.snapshot
	return &snap, nil
}

// Mark returns the close of the newest cached snapshot of any timeframe.
func (c *WSClient) Mark(instrument string) (float64, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	snapshots := make(map[key]*domain.IndicatorSnapshot)
	for _, tf := range c.timeframes {
		k := keyOf(instrument, tf)
		if entry, ok := c.cache[k]; ok {
			snapshots[k] = &entry.snapshot
		}
	}
	return markOf(snapshots, instrument)
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

func (c *WSClient) subscribe() error {
	tfs := make([]string, len(c.timeframes))
	for i, tf := range c.timeframes {
		tfs[i] = string(tf)
	}
	req := wsSubscribe{
		Op:          "subscribe",
		Instruments: c.instruments,
		Timeframes:  tfs,
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// readLoop reads messages and updates the cache, reconnecting on error with
// exponential delay.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.log.Warn().Err(err).Dur("delay", reconnectDelay).Msg("feed connection lost, reconnecting")
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Retried on the next read error.
		c.log.Warn().Err(err).Msg("feed reconnect failed")
		return
	}
	if err := c.subscribe(); err != nil {
		c.log.Warn().Err(err).Msg("feed resubscribe failed")
		return
	}
	c.log.Info().Msg("feed reconnected")
}

func (c *WSClient) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Debug().Err(err).Msg("unparseable feed message")
		return
	}

	switch msg.Type {
	case "snapshot":
		if msg.Data == nil || msg.Data.Instrument == "" {
			return
		}
		snap := msg.Data.toDomain()
		k := keyOf(snap.Instrument, snap.Timeframe)

		c.cacheMu.Lock()
		if prev, ok := c.cache[k]; !ok || snap.Timestamp >= prev.snapshot.Timestamp {
			c.cache[k] = &cachedSnapshot{snapshot: snap, receivedAt: c.now()}
		}
		c.cacheMu.Unlock()
	case "error":
		c.log.Warn().Str("error", msg.Error).Msg("feed error message")
	}
}

func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection surfaces in the read loop.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsSubscribe struct {
	Op          string   `json:"op"`
	Instruments []string `json:"instruments"`
	Timeframes  []string `json:"timeframes"`
}

type wsMessage struct {
	Type  string      `json:"type"`
	Data  *wsSnapshot `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type wsSnapshot struct {
	Instrument     string  `json:"instrument"`
	Timeframe      string  `json:"timeframe"`
	Timestamp      int64   `json:"timestamp"`
	Close          float64 `json:"close"`
	PrevClose      float64 `json:"prev_close"`
	Close3         float64 `json:"close_3"`
	FastMA         float64 `json:"fast_ma"`
	SlowMA         float64 `json:"slow_ma"`
	PrevFastMA     float64 `json:"prev_fast_ma"`
	PrevSlowMA     float64 `json:"prev_slow_ma"`
	RSI            float64 `json:"rsi"`
	PrevRSI        float64 `json:"prev_rsi"`
	MACDHist       float64 `json:"macd_hist"`
	PrevMACDHist   float64 `json:"prev_macd_hist"`
	BandUpper      float64 `json:"band_upper"`
	BandMiddle     float64 `json:"band_middle"`
	BandLower      float64 `json:"band_lower"`
	ATR            float64 `json:"atr"`
	Volume         float64 `json:"volume"`
	VolumeBaseline float64 `json:"volume_baseline"`
}

func (s *wsSnapshot) toDomain() domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		Instrument:     s.Instrument,
		Timeframe:      domain.Timeframe(s.Timeframe),
		Timestamp:      s.Timestamp,
		Close:          s.Close,
		PrevClose:      s.PrevClose,
		Close3:         s.Close3,
		FastMA:         s.FastMA,
		SlowMA:         s.SlowMA,
		PrevFastMA:     s.PrevFastMA,
		PrevSlowMA:     s.PrevSlowMA,
		RSI:            s.RSI,
		PrevRSI:        s.PrevRSI,
		MACDHist:       s.MACDHist,
		PrevMACDHist:   s.PrevMACDHist,
		BandUpper:      s.BandUpper,
		BandMiddle:     s.BandMiddle,
		BandLower:      s.BandLower,
		ATR:            s.ATR,
		Volume:         s.Volume,
		VolumeBaseline: s.VolumeBaseline,
	}
}

// DecodeSnapshot parses one snapshot object in the feed wire format, the
// same object carried in the data field of a "snapshot" message.
func DecodeSnapshot(data []byte) (*domain.IndicatorSnapshot, error) {
	var s wsSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Instrument == "" || s.Timeframe == "" {
		return nil, fmt.Errorf("decode snapshot: missing instrument or timeframe")
	}
	snap := s.toDomain()
	return &snap, nil
}
