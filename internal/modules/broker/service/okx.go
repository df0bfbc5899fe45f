package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

const liveBaseURL = "https://www.okx.com"

// Live — подписанный REST-клиент площадки (OKX-совместимый trade API).
type Live struct {
	http    *http.Client
	baseURL string

	apiKey    string
	apiSecret string
	passph    string
}

func NewLive(cfg *config.Config) *Live {
	base := cfg.Venue.BaseURL
	if base == "" {
		base = liveBaseURL
	}
	return &Live{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   base,
		apiKey:    cfg.Venue.APIKey,
		apiSecret: cfg.Venue.APISecret,
		passph:    cfg.Venue.Passphrase,
	}
}

func (l *Live) sign(ts, method, requestPath, body string) string {
	msg := ts + strings.ToUpper(method) + requestPath + body
	h := hmac.New(sha256.New, []byte(l.apiSecret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (l *Live) do(ctx context.Context, method, requestPath string, body []byte) ([]byte, error) {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+requestPath, rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("OK-ACCESS-KEY", l.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", l.sign(ts, method, requestPath, string(body)))
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", l.passph)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrVenueUnavailable, err.Error())
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 == 5 {
		return nil, errors.Wrapf(ErrVenueUnavailable, "http %d: %s", resp.StatusCode, string(rb))
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	return rb, nil
}

// mapReject — коды отказов в доменные ошибки.
func mapReject(code, msg string) error {
	switch code {
	case "51008", "59200":
		return errors.Wrapf(ErrInsufficientFunds, "%s %s", code, msg)
	case "51001", "51000":
		return errors.Wrapf(ErrInvalidInstrument, "%s %s", code, msg)
	default:
		return errors.Errorf("venue reject: code=%s msg=%s", code, msg)
	}
}

func (l *Live) SubmitOrder(ctx context.Context, order models.Order) (models.ExecutionReport, error) {
	side := "buy"
	if order.Side == models.OrderSell || order.Side == models.OrderStopLoss {
		side = "sell"
	}

	body := map[string]string{
		"instId":  order.Ticker,
		"tdMode":  "cross",
		"side":    side,
		"ordType": "limit",
		"px":      strconv.FormatFloat(order.Price, 'f', -1, 64),
		"sz":      strconv.FormatFloat(order.Volume, 'f', -1, 64),
		"clOrdId": sanitizeClOrdID(order.ID),
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return models.ExecutionReport{}, errors.Wrap(err, "marshal order")
	}

	rb, err := l.do(ctx, http.MethodPost, "/api/v5/trade/order", payload)
	if err != nil {
		return models.ExecutionReport{}, err
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			OrdID string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &r); err != nil {
		return models.ExecutionReport{}, errors.Wrap(err, "decode submit response")
	}
	if r.Code != "0" {
		return models.ExecutionReport{}, mapReject(r.Code, r.Msg)
	}
	if len(r.Data) == 0 || r.Data[0].SCode != "0" {
		code, msg := "", string(rb)
		if len(r.Data) > 0 {
			code, msg = r.Data[0].SCode, r.Data[0].SMsg
		}
		return models.ExecutionReport{}, mapReject(code, msg)
	}

	// заливка приходит не в ack — добираем статус отдельным запросом
	return l.fetchReport(ctx, order)
}

func (l *Live) fetchReport(ctx context.Context, order models.Order) (models.ExecutionReport, error) {
	path := fmt.Sprintf("/api/v5/trade/order?instId=%s&clOrdId=%s", order.Ticker, sanitizeClOrdID(order.ID))
	rb, err := l.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return models.ExecutionReport{}, err
	}

	var r struct {
		Code string `json:"code"`
		Data []struct {
			AccFillSz string `json:"accFillSz"`
			AvgPx     string `json:"avgPx"`
			Fee       string `json:"fee"`
			Sz        string `json:"sz"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &r); err != nil {
		return models.ExecutionReport{}, errors.Wrap(err, "decode order status")
	}
	if r.Code != "0" || len(r.Data) == 0 {
		// ордер принят, но статус не прочитали — отдаём пустой отчёт, не отказ
		return models.ExecutionReport{OrderID: order.ID, ExecTime: time.Now(), RemainingVolume: order.Volume}, nil
	}

	filled, _ := strconv.ParseFloat(r.Data[0].AccFillSz, 64)
	avgPx, _ := strconv.ParseFloat(r.Data[0].AvgPx, 64)
	fee, _ := strconv.ParseFloat(r.Data[0].Fee, 64)
	sz, _ := strconv.ParseFloat(r.Data[0].Sz, 64)
	if sz <= 0 {
		sz = order.Volume
	}

	return models.ExecutionReport{
		OrderID:         order.ID,
		ExecTime:        time.Now(),
		FilledVolume:    filled,
		FillPrice:       avgPx,
		Commission:      -fee, // биржа отдаёт fee со знаком минус
		RemainingVolume: sz - filled,
	}, nil
}

func (l *Live) CancelOrder(ctx context.Context, order models.Order) error {
	body := map[string]string{
		"instId":  order.Ticker,
		"clOrdId": sanitizeClOrdID(order.ID),
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal cancel")
	}

	rb, err := l.do(ctx, http.MethodPost, "/api/v5/trade/cancel-order", payload)
	if err != nil {
		return err
	}

	var r struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &r); err != nil {
		return errors.Wrap(err, "decode cancel response")
	}
	if r.Code != "0" {
		return mapReject(r.Code, r.Msg)
	}
	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return mapReject(r.Data[0].SCode, r.Data[0].SMsg)
	}
	return nil
}

// clOrdId: только [a-zA-Z0-9], наш формат YYYYMMDD_N содержит подчёркивание
func sanitizeClOrdID(id string) string {
	return strings.ReplaceAll(id, "_", "")
}
