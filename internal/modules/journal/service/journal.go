package service

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"
)

// Journal — append-only аудит цикла: сигналы, ордера, переходы состояния.
// Без менеджера транзакций все записи становятся no-op, движок от базы
// не зависит.
type Journal struct {
	tx *db.PgTxManager
}

func NewJournal(tx *db.PgTxManager) *Journal {
	return &Journal{tx: tx}
}

func (j *Journal) enabled() bool { return j != nil && j.tx != nil }

func (j *Journal) RecordSignal(ctx context.Context, s models.Signal) {
	if !j.enabled() {
		return
	}
	meta, err := sonic.Marshal(s.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	err = j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return j.insertSignal(ctxTx, tx, s, meta)
	})
	if err != nil {
		logger.Warn("[JOURNAL] сигнал %s %s не записан: %v", s.Ticker, s.Action, err)
	}
}

func (j *Journal) insertSignal(ctx context.Context, tx pgx.Tx, s models.Signal, meta []byte) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.insertSignal: %w", err)
		}
	}()
	_, err = tx.Exec(ctx, `
		INSERT INTO signals (ticker, action, price, confidence, stop_loss, take_profit, strategy, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.Ticker, string(s.Action), s.Price, s.Confidence, s.StopLoss, s.TakeProfit, string(s.Strategy), meta, s.CreatedAt,
	)
	return err
}

func (j *Journal) RecordOrder(ctx context.Context, o models.Order, rep models.ExecutionReport) {
	if !j.enabled() {
		return
	}
	err := j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return j.insertOrder(ctxTx, tx, o, rep)
	})
	if err != nil {
		logger.Warn("[JOURNAL] ордер %s не записан: %v", o.ID, err)
	}
}

func (j *Journal) insertOrder(ctx context.Context, tx pgx.Tx, o models.Order, rep models.ExecutionReport) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.insertOrder: %w", err)
		}
	}()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, ticker, side, price, volume, filled_volume, fill_price, commission, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE
		SET filled_volume = EXCLUDED.filled_volume,
		    fill_price    = EXCLUDED.fill_price,
		    status        = EXCLUDED.status`,
		o.ID, o.Ticker, string(o.Side), o.Price, o.Volume,
		rep.FilledVolume, rep.FillPrice, rep.Commission, string(o.Status), o.Reason, o.CreatedAt,
	)
	return err
}

func (j *Journal) RecordTransition(ctx context.Context, from, to models.BotState) {
	if !j.enabled() {
		return
	}
	err := j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO state_transitions (prev, next, at)
			VALUES ($1, $2, now())`,
			string(from), string(to),
		)
		if err != nil {
			return fmt.Errorf("Journal.RecordTransition: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Warn("[JOURNAL] переход %s -> %s не записан: %v", from, to, err)
	}
}
