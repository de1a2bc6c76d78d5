package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/fundrun/internal/domain/funding"
)

// DefaultWSURL is the Hyperliquid mainnet websocket endpoint.
const DefaultWSURL = "wss://api.hyperliquid.xyz/ws"

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
	watchBuffer  = 16
)

// Watcher streams live funding updates over the exchange websocket.
type Watcher struct {
	url string
}

// NewWatcher builds a watcher for the given websocket URL, defaulting to
// the mainnet endpoint when empty.
func NewWatcher(url string) *Watcher {
	if url == "" {
		url = DefaultWSURL
	}
	return &Watcher{url: url}
}

type wsSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type wsSubscribeMessage struct {
	Method       string         `json:"method"`
	Subscription wsSubscription `json:"subscription"`
}

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// wsAssetCtx is the activeAssetCtx payload. Funding arrives as a
// fractional string, same units as the REST history rows.
type wsAssetCtx struct {
	Coin string `json:"coin"`
	Ctx  struct {
		Funding string `json:"funding"`
		MarkPx  string `json:"markPx"`
	} `json:"ctx"`
}

// Watch subscribes to the active asset context for coin and emits one
// observation per funding update until ctx is cancelled or the connection
// drops. The returned channel is closed when the stream ends.
func (w *Watcher) Watch(ctx context.Context, coin string) (<-chan funding.Observation, error) {
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	sub := wsSubscribeMessage{
		Method:       "subscribe",
		Subscription: wsSubscription{Type: "activeAssetCtx", Coin: coin},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", coin, err)
	}

	log.Info().Str("coin", coin).Str("url", w.url).Msg("watching live funding updates")

	out := make(chan funding.Observation, watchBuffer)
	done := make(chan struct{})
	go w.pingLoop(ctx, conn, done)
	go w.readLoop(ctx, conn, out, done)
	return out, nil
}

// readLoop decodes incoming frames onto the output channel. It owns the
// connection teardown and signals the ping loop through done.
func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- funding.Observation, done chan<- struct{}) {
	defer close(out)
	defer close(done)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("websocket read failed")
			}
			return
		}

		obs, ok := decodeFundingUpdate(message)
		if !ok {
			continue
		}

		select {
		case out <- obs:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			deadline := time.Now().Add(wsWriteWait)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
			return
		case <-done:
			return
		}
	}
}

func decodeFundingUpdate(message []byte) (funding.Observation, bool) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil || env.Channel != "activeAssetCtx" {
		return funding.Observation{}, false
	}

	var data wsAssetCtx
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return funding.Observation{}, false
	}

	fractional, err := strconv.ParseFloat(data.Ctx.Funding, 64)
	if err != nil {
		return funding.Observation{}, false
	}

	return funding.Observation{
		Time:       time.Now().UTC(),
		Rate:       fractional * 100,
		Instrument: data.Coin,
	}, true
}
