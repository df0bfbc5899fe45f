package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_engine/internal/helper"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

const defaultBaseURL = "https://www.okx.com"

// Client — REST-клиент публичных маркет-данных (OKX-совместимый API).
// Последняя цена сперва берётся из WS-кэша, REST — фоллбэк.
type Client struct {
	http    *http.Client
	baseURL string
	cache   *PriceCache
}

func NewClient(cfg *config.Config, cache *PriceCache) *Client {
	base := cfg.Venue.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: base,
		cache:   cache,
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	return rb, nil
}

func (c *Client) GetRecentBars(ctx context.Context, ticker, timeframe string) ([]models.Candle, error) {
	bar := "candle" + helper.NormTF(timeframe)
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s&limit=100",
		url.QueryEscape(ticker), url.QueryEscape(bar))

	rb, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return nil, errors.Wrap(err, "decode candles")
	}
	if payload.Code != "0" {
		if payload.Code == "51001" {
			return nil, errors.Wrapf(ErrNotFound, "%s", ticker)
		}
		return nil, errors.Errorf("venue error %s: %s", payload.Code, payload.Msg)
	}

	// API отдаёт от новых к старым — разворачиваем
	out := make([]models.Candle, 0, len(payload.Data))
	for i := len(payload.Data) - 1; i >= 0; i-- {
		row := payload.Data[i]
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		o, _ := strconv.ParseFloat(row[1], 64)
		h, _ := strconv.ParseFloat(row[2], 64)
		l, _ := strconv.ParseFloat(row[3], 64)
		cl, _ := strconv.ParseFloat(row[4], 64)
		v, _ := strconv.ParseFloat(row[5], 64)
		out = append(out, models.Candle{
			Ticker: ticker,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: v,
			Start:  time.UnixMilli(ms),
		})
	}
	return out, nil
}

func (c *Client) GetLastPrice(ctx context.Context, ticker string) (float64, error) {
	if c.cache != nil {
		if px, ok := c.cache.Get(ticker); ok {
			return px, nil
		}
	}

	rb, err := c.get(ctx, "/api/v5/market/ticker?instId="+url.QueryEscape(ticker))
	if err != nil {
		return 0, err
	}

	var payload struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return 0, errors.Wrap(err, "decode ticker")
	}
	if payload.Code != "0" || len(payload.Data) == 0 {
		return 0, errors.Wrapf(ErrNotFound, "%s: code=%s", ticker, payload.Code)
	}

	px, err := strconv.ParseFloat(payload.Data[0].Last, 64)
	if err != nil || px <= 0 {
		return 0, errors.Errorf("bad last price %q for %s", payload.Data[0].Last, ticker)
	}
	return px, nil
}

func (c *Client) GetOrderBook(ctx context.Context, ticker string, depth int) (models.OrderBook, error) {
	if depth <= 0 {
		depth = 10
	}
	path := fmt.Sprintf("/api/v5/market/books?instId=%s&sz=%d", url.QueryEscape(ticker), depth)

	rb, err := c.get(ctx, path)
	if err != nil {
		return models.OrderBook{}, err
	}

	var payload struct {
		Code string `json:"code"`
		Data []struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return models.OrderBook{}, errors.Wrap(err, "decode book")
	}
	if payload.Code != "0" || len(payload.Data) == 0 {
		return models.OrderBook{}, errors.Wrapf(ErrNotFound, "%s", ticker)
	}

	parse := func(rows [][]string) []models.BookLevel {
		out := make([]models.BookLevel, 0, len(rows))
		for _, r := range rows {
			if len(r) < 2 {
				continue
			}
			px, _ := strconv.ParseFloat(r[0], 64)
			sz, _ := strconv.ParseFloat(r[1], 64)
			out = append(out, models.BookLevel{Price: px, Volume: sz})
		}
		return out
	}

	return models.OrderBook{
		Ticker: ticker,
		Bids:   parse(payload.Data[0].Bids),
		Asks:   parse(payload.Data[0].Asks),
	}, nil
}
