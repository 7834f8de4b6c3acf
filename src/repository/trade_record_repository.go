package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeanalyst/src/database"
	"tradeanalyst/src/model"
)

// TradeRecordRepository handles read/write operations for the durable trade
// lifecycle records. Every state transition goes through here before it is
// acknowledged to the counterpart.
type TradeRecordRepository struct {
	db *gorm.DB
}

// NewTradeRecordRepository creates a repository backed by the main database.
func NewTradeRecordRepository() *TradeRecordRepository {
	return &TradeRecordRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRecordRepository) WithDB(db *gorm.DB) *TradeRecordRepository {
	return &TradeRecordRepository{db: db}
}

// ---------------------------------------------------
// Watch lifecycle
// ---------------------------------------------------

// CreateWatch inserts the initial record for an admitted setup.
func (r *TradeRecordRepository) CreateWatch(
	ctx context.Context,
	record *model.TradeRecord,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "CreateWatch",
		"trade_id": record.TradeID,
		"symbol":   record.Symbol,
		"bias":     record.Bias,
	}).Debug("Creating watch record")

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "CreateWatch",
			"trade_id": record.TradeID,
		}).WithError(err).Error("Failed to create watch record")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "CreateWatch",
		"trade_id": record.TradeID,
	}).Info("Watch record created")

	return nil
}

// FindByTradeID fetches a record by its trade identifier.
// Returns (nil, nil) if the record is not found.
func (r *TradeRecordRepository) FindByTradeID(
	ctx context.Context,
	tradeID string,
) (*model.TradeRecord, error) {

	var record model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "TradeRecordRepository",
				"op":       "FindByTradeID",
				"trade_id": tradeID,
			}).Info("Trade record not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "FindByTradeID",
			"trade_id": tradeID,
		}).WithError(err).Error("Failed to fetch trade record")

		return nil, err
	}

	return &record, nil
}

// RecordAttempt persists one counted confirmation attempt.
func (r *TradeRecordRepository) RecordAttempt(
	ctx context.Context,
	tradeID string,
	attemptsUsed int,
	at time.Time,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("trade_id = ?", tradeID).
		Updates(map[string]interface{}{
			"attempts_used":   attemptsUsed,
			"last_attempt_at": at,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "RecordAttempt",
			"trade_id": tradeID,
		}).WithError(err).Error("Failed to record confirmation attempt")

		return err
	}

	return nil
}

// UpdateStatus transitions the lifecycle status of a trade record.
func (r *TradeRecordRepository) UpdateStatus(
	ctx context.Context,
	tradeID string,
	status string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "UpdateStatus",
		"trade_id": tradeID,
		"status":   status,
	}).Debug("Updating trade status")

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("trade_id = ?", tradeID).
		Update("status", status).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "UpdateStatus",
			"trade_id": tradeID,
			"status":   status,
		}).WithError(err).Error("Failed to update trade status")

		return err
	}

	return nil
}

// MarkConfirmed moves a watching record to confirmed and stores the final
// entry parameters handed to the execution agent.
func (r *TradeRecordRepository) MarkConfirmed(
	ctx context.Context,
	tradeID string,
	entryPrice float64,
	stopLoss float64,
	sizeSuggestion float64,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("trade_id = ? AND status = ?", tradeID, model.TradeStatusWatching).
		Updates(map[string]interface{}{
			"status":          model.TradeStatusConfirmed,
			"actual_entry":    entryPrice,
			"current_stop":    stopLoss,
			"size_suggestion": sizeSuggestion,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "MarkConfirmed",
			"trade_id": tradeID,
		}).WithError(err).Error("Failed to mark trade confirmed")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "MarkConfirmed",
		"trade_id": tradeID,
		"entry":    entryPrice,
	}).Info("Trade confirmed")

	return nil
}

// ---------------------------------------------------
// Execution and close reports (idempotent)
// ---------------------------------------------------

// MarkExecuted applies an execution report exactly once. A repeated report
// for the same trade identifier returns applied=false and changes nothing.
func (r *TradeRecordRepository) MarkExecuted(
	ctx context.Context,
	report *model.ExecutionReport,
) (applied bool, err error) {

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record model.TradeRecord

		if txErr := tx.Where("trade_id = ?", report.TradeID).First(&record).Error; txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				logger.WithField("trade_id", report.TradeID).
					Warn("Execution report for unknown trade, ignoring")
				return nil
			}
			return txErr
		}

		if record.ExecutedAt != nil {
			logger.WithFields(map[string]interface{}{
				"repo":     "TradeRecordRepository",
				"op":       "MarkExecuted",
				"trade_id": report.TradeID,
			}).Info("Execution report already applied, no-op")
			return nil
		}

		now := time.Now().UTC()
		outcome := model.OutcomeOpen
		if report.Status == model.TradeStatusFailed {
			outcome = model.TradeStatusFailed
		}

		updates := map[string]interface{}{
			"status":        report.Status,
			"outcome":       outcome,
			"actual_entry":  report.ActualEntry,
			"current_stop":  report.ActualSL,
			"ticket_tp1":    report.TicketTP1,
			"ticket_tp2":    report.TicketTP2,
			"lots_tp1":      report.LotsTP1,
			"lots_tp2":      report.LotsTP2,
			"error_message": report.ErrorMessage,
			"executed_at":   now,
		}

		if txErr := tx.Model(&model.TradeRecord{}).
			Where("trade_id = ?", report.TradeID).
			Updates(updates).Error; txErr != nil {
			return txErr
		}

		applied = true
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "MarkExecuted",
			"trade_id": report.TradeID,
		}).WithError(err).Error("Failed to apply execution report")

		return false, err
	}

	if applied {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "MarkExecuted",
			"trade_id": report.TradeID,
			"status":   report.Status,
		}).Info("Execution report applied")
	}

	return applied, nil
}

// ApplyClose applies a per-leg close report exactly once. Duplicate reports
// for an already-recorded leg return applied=false. When the record becomes
// fully closed the outcome and pip P&L are settled.
func (r *TradeRecordRepository) ApplyClose(
	ctx context.Context,
	report *model.CloseReport,
) (applied bool, err error) {

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record model.TradeRecord

		if txErr := tx.Where("trade_id = ?", report.TradeID).First(&record).Error; txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				logger.WithField("trade_id", report.TradeID).
					Warn("Close report for unknown trade, ignoring")
				return nil
			}
			return txErr
		}

		if record.Status == model.TradeStatusClosed {
			return nil
		}

		updates := map[string]interface{}{
			"pnl_money": record.PnlMoney + report.Profit,
		}

		switch report.CloseReason {
		case model.CloseReasonTP1:
			if record.TP1Hit {
				return nil
			}
			record.TP1Hit = true
			updates["tp1_hit"] = true
			updates["close_price_tp1"] = report.ClosePrice
		case model.CloseReasonTP2:
			if record.TP2Hit {
				return nil
			}
			record.TP2Hit = true
			updates["tp2_hit"] = true
			updates["close_price_tp2"] = report.ClosePrice
		case model.CloseReasonSL:
			if record.SLHit {
				return nil
			}
			record.SLHit = true
			updates["sl_hit"] = true
		}

		terminalReason := report.CloseReason == model.CloseReasonCancelled ||
			report.CloseReason == model.CloseReasonManual ||
			report.CloseReason == model.CloseReasonUnknown

		closed := record.SLHit || (record.TP1Hit && record.TP2Hit) || terminalReason

		if closed {
			switch {
			case record.SLHit && !record.TP1Hit && !record.TP2Hit:
				updates["pnl_pips"] = -record.SLPips
				updates["outcome"] = model.OutcomeLoss
			case record.TP1Hit && record.TP2Hit:
				updates["pnl_pips"] = record.TP1Pips + record.TP2Pips
				updates["outcome"] = model.OutcomeFullWin
			case record.TP1Hit && record.SLHit:
				// Runner stopped out after the first target was banked.
				updates["pnl_pips"] = record.TP1Pips - record.SLPips
				updates["outcome"] = model.OutcomePartialWin
			case report.CloseReason == model.CloseReasonCancelled:
				updates["pnl_pips"] = 0.0
				updates["outcome"] = model.OutcomeCancelled
			default:
				updates["outcome"] = model.OutcomeClosed
			}

			now := time.Now().UTC()
			updates["status"] = model.TradeStatusClosed
			updates["closed_at"] = now
		}

		if txErr := tx.Model(&model.TradeRecord{}).
			Where("trade_id = ?", report.TradeID).
			Updates(updates).Error; txErr != nil {
			return txErr
		}

		applied = true
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "ApplyClose",
			"trade_id": report.TradeID,
			"reason":   report.CloseReason,
		}).WithError(err).Error("Failed to apply close report")

		return false, err
	}

	if applied {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "ApplyClose",
			"trade_id": report.TradeID,
			"reason":   report.CloseReason,
			"profit":   report.Profit,
		}).Info("Close report applied")
	}

	return applied, nil
}

// UpdateStopLoss mirrors an agent-side stop modification into the record.
func (r *TradeRecordRepository) UpdateStopLoss(
	ctx context.Context,
	tradeID string,
	stopLoss float64,
	firstTargetHit bool,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("trade_id = ?", tradeID).
		Updates(map[string]interface{}{
			"current_stop": stopLoss,
			"tp1_hit":      firstTargetHit,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRecordRepository",
			"op":       "UpdateStopLoss",
			"trade_id": tradeID,
			"stop":     stopLoss,
		}).WithError(err).Error("Failed to update stop loss")

		return err
	}

	return nil
}

// ---------------------------------------------------
// Recovery and bookkeeping queries
// ---------------------------------------------------

// FindByStatus returns every record currently in the given status.
func (r *TradeRecordRepository) FindByStatus(
	ctx context.Context,
	status string,
) ([]model.TradeRecord, error) {

	var records []model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&records).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRecordRepository",
			"op":     "FindByStatus",
			"status": status,
		}).WithError(err).Error("Failed to fetch records by status")

		return nil, err
	}

	return records, nil
}

// FindOpen returns executed records that still track a live position.
// An empty symbol matches all instruments.
func (r *TradeRecordRepository) FindOpen(
	ctx context.Context,
	symbol string,
) ([]model.TradeRecord, error) {

	var records []model.TradeRecord

	query := r.db.WithContext(ctx).
		Where("outcome = ? AND status IN ?", model.OutcomeOpen,
			[]string{model.TradeStatusExecuted, model.TradeStatusPending})
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	err := query.Order("created_at ASC").Find(&records).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRecordRepository",
			"op":     "FindOpen",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch open trades")

		return nil, err
	}

	return records, nil
}

// CountOpen counts live positions, used for the open-trade ceiling.
func (r *TradeRecordRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("outcome = ? AND status IN ?", model.OutcomeOpen,
			[]string{model.TradeStatusExecuted, model.TradeStatusPending}).
		Count(&count).Error

	if err != nil {
		logger.WithError(err).Error("Failed to count open trades")
		return 0, err
	}

	return count, nil
}

// SumPnlSince totals realized money P&L for trades closed at or after the
// cutoff, used for the daily-loss ceiling.
func (r *TradeRecordRepository) SumPnlSince(
	ctx context.Context,
	cutoff time.Time,
) (float64, error) {

	var total *float64

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("status = ? AND closed_at >= ?", model.TradeStatusClosed, cutoff).
		Select("SUM(pnl_money)").
		Scan(&total).Error

	if err != nil {
		logger.WithError(err).Error("Failed to sum realized P&L")
		return 0, err
	}

	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// ExpireStaleWatches transitions watching/confirmed records whose expiry
// passed to expired. Safe to run repeatedly; returns the rows affected.
func (r *TradeRecordRepository) ExpireStaleWatches(
	ctx context.Context,
	now time.Time,
) (int64, error) {

	result := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?",
			[]string{model.TradeStatusWatching, model.TradeStatusConfirmed}, now).
		Updates(map[string]interface{}{
			"status":  model.TradeStatusExpired,
			"outcome": model.OutcomeCancelled,
		})

	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to expire stale watches")
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		logger.WithField("expired", result.RowsAffected).Info("Stale watches expired")
	}

	return result.RowsAffected, nil
}

// Stats aggregates closed-trade performance over the given day window.
func (r *TradeRecordRepository) Stats(
	ctx context.Context,
	symbol string,
	days int,
) (*model.StatsSummary, error) {

	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var records []model.TradeRecord

	query := r.db.WithContext(ctx).Where("created_at >= ?", cutoff)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		logger.WithError(err).Error("Failed to fetch records for stats")
		return nil, err
	}

	summary := &model.StatsSummary{
		PeriodDays: days,
		Symbol:     symbol,
		PairStats:  map[string]model.PairStats{},
	}
	if summary.Symbol == "" {
		summary.Symbol = "ALL"
	}

	summary.TotalTrades = len(records)
	for _, rec := range records {
		pair := summary.PairStats[rec.Symbol]
		pair.Total++

		switch {
		case rec.Open():
			summary.OpenTrades++
		case rec.Status == model.TradeStatusFailed:
			summary.FailedTrades++
		case rec.Status == model.TradeStatusClosed:
			summary.ClosedTrades++
			pair.Closed++
			pair.PnlPips += rec.PnlPips
			pair.PnlMoney += rec.PnlMoney
			summary.TotalPnlPips += rec.PnlPips
			summary.TotalPnlUSD += rec.PnlMoney

			switch rec.Outcome {
			case model.OutcomeFullWin:
				summary.FullWins++
				summary.Wins++
				pair.Wins++
			case model.OutcomePartialWin:
				summary.PartialWins++
				summary.Wins++
				pair.Wins++
			case model.OutcomeLoss:
				summary.Losses++
			}
		}

		if pair.Closed > 0 {
			pair.WinRate = float64(pair.Wins) / float64(pair.Closed) * 100
		}
		summary.PairStats[rec.Symbol] = pair
	}

	if summary.ClosedTrades > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.ClosedTrades) * 100
	}

	return summary, nil
}
