package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

const defaultWSURL = "wss://ws.okx.com:8443/ws/v5/public"

// PriceCache — последняя цена по тикеру, питается из WS-стрима.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]float64)}
}

func (p *PriceCache) Set(ticker string, px float64) {
	p.mu.Lock()
	p.prices[ticker] = px
	p.mu.Unlock()
}

func (p *PriceCache) Get(ticker string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	px, ok := p.prices[ticker]
	return px, ok && px > 0
}

// ConnReporter получает статус WS-соединения (health-эндпоинт).
type ConnReporter interface {
	SetWSConnected(v bool)
}

// Stream держит один WebSocket на канал tickers и обновляет кэш цен.
// Падение соединения — реконнект с нарастающей паузой.
type Stream struct {
	cfg      *config.Config
	cache    *PriceCache
	health   ConnReporter // nil допустим
	wsDialer *websocket.Dialer
}

func NewStream(cfg *config.Config, cache *PriceCache, health ConnReporter) *Stream {
	return &Stream{
		cfg:      cfg,
		cache:    cache,
		health:   health,
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *Stream) setConnected(v bool) {
	if s.health != nil {
		s.health.SetWSConnected(v)
	}
}

func (s *Stream) Run(ctx context.Context) {
	wsURL := s.cfg.Venue.WSURL
	if wsURL == "" {
		wsURL = defaultWSURL
	}

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := s.wsDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			retry++
			wait := time.Duration(retry) * time.Second
			if wait > 30*time.Second {
				wait = 30 * time.Second
			}
			logger.Warn("[MARKET] ws dial: %v, реконнект через %s", err, wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry = 0

		if err := s.subscribe(conn); err != nil {
			logger.Warn("[MARKET] ws subscribe: %v", err)
			_ = conn.Close()
			continue
		}
		logger.Info("[MARKET] ws подключён: %d тикеров", len(s.cfg.Tickers))
		s.setConnected(true)

		s.readLoop(ctx, conn)
		s.setConnected(false)
		_ = conn.Close()
	}
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	args := make([]map[string]string, 0, len(s.cfg.Tickers))
	for _, t := range s.cfg.Tickers {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  t,
		})
	}
	sub := map[string]any{"op": "subscribe", "args": args}
	payload, err := sonic.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	// читалка закрывается снаружи через deadline по ctx;
	// сторож живёт не дольше своего соединения
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[MARKET] ws read: %v", err)
			return
		}

		var msg struct {
			Arg struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"arg"`
			Data []struct {
				Last string `json:"last"`
			} `json:"data"`
		}
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
			continue
		}
		if px, ok := parsePrice(msg.Data[len(msg.Data)-1].Last); ok {
			s.cache.Set(msg.Arg.InstID, px)
		}
	}
}

func parsePrice(s string) (float64, bool) {
	px, err := strconv.ParseFloat(s, 64)
	if err != nil || px <= 0 {
		return 0, false
	}
	return px, true
}
