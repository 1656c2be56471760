// Package feed connects the service to live odds sources and routes ticks
// into the detection pipeline.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddslab/syntharb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TickHandler is called for each decoded market tick.
type TickHandler func(ctx context.Context, tick domain.MarketTick)

// subscribeCommand is the subscription message sent after connecting.
type subscribeCommand struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// tickMessage is the wire shape of a single odds update.
type tickMessage struct {
	Event     string  `json:"event"`
	GameID    string  `json:"game_id"`
	Market    string  `json:"market"`
	Exchange  string  `json:"exchange"`
	Sport     string  `json:"sport"`
	Rotation  int     `json:"rotation"`
	HomeOdds  float64 `json:"home_odds"`
	AwayOdds  float64 `json:"away_odds"`
	Timestamp string  `json:"timestamp"`
}

// OddsWSFeed maintains a WebSocket connection to an odds provider, decodes
// tick messages, and invokes the handler for each one. It reconnects with
// exponential backoff on disconnect.
type OddsWSFeed struct {
	wsURL   string
	handler TickHandler
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewOddsWSFeed creates a feed for the given WebSocket endpoint.
func NewOddsWSFeed(wsURL string, handler TickHandler, logger *slog.Logger) *OddsWSFeed {
	return &OddsWSFeed{
		wsURL:   wsURL,
		handler: handler,
		logger:  logger.With(slog.String("component", "odds_ws_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and consumes ticks until ctx is cancelled or Close is called.
// Each successful connection resets the reconnect backoff.
func (f *OddsWSFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("odds ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials, subscribes, and reads until the connection drops.
func (f *OddsWSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub, _ := json.Marshal(subscribeCommand{Type: "subscribe", Channel: "ticks"})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return err
	}
	f.logger.Info("odds ws subscribed", slog.String("url", f.wsURL))

	// Close the connection when the context ends so ReadMessage unblocks.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-readDone:
			return
		}
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		conn.Close()
	}()

	go f.pingLoop(conn, readDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.done:
				return nil
			default:
				return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
			}
		}
		f.handleMessage(ctx, raw)
	}
}

// pingLoop keeps the connection alive until the read loop ends.
func (f *OddsWSFeed) pingLoop(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-f.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a tick payload and dispatches it. Unparseable or
// non-tick messages are dropped silently.
func (f *OddsWSFeed) handleMessage(ctx context.Context, raw []byte) {
	var msg tickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Event != "" && msg.Event != "tick" {
		return
	}
	if msg.GameID == "" || msg.Market == "" {
		return
	}

	tick := domain.MarketTick{
		GameID:   msg.GameID,
		Exchange: msg.Exchange,
		Market:   msg.Market,
		Sport:    msg.Sport,
		Odds:     domain.Odds{Home: msg.HomeOdds, Away: msg.AwayOdds},
	}
	if tick.Sport == "" && msg.Rotation > 0 {
		tick.Sport = domain.SportFromRotation(msg.Rotation)
	}
	tick.Timestamp = time.Now().UTC()
	if msg.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err == nil {
			tick.Timestamp = t
		}
	}

	if f.handler != nil {
		f.handler(ctx, tick)
	}
}

// Close stops the feed.
func (f *OddsWSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
