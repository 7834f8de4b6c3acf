package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"tradeanalyst/src/model"
)

// normalizeSymbolCase uppercases symbols written by early clients that sent
// lowercase pairs. Registries key watches by the uppercase symbol, so mixed
// case would let two watches share one instrument.
func normalizeSymbolCase(db *gorm.DB) error {
	err := db.Model(&model.TradeRecord{}).
		Where("symbol <> UPPER(symbol)").
		Update("symbol", gorm.Expr("UPPER(symbol)")).Error
	if err != nil {
		return fmt.Errorf("uppercase symbols: %w", err)
	}
	return nil
}

// backfillTradeOutcomes settles rows created before the outcome column
// existed: closed rows derive their outcome from the hit flags, everything
// terminal without one is marked cancelled.
func backfillTradeOutcomes(db *gorm.DB) error {
	var records []model.TradeRecord

	err := db.Where("(outcome IS NULL OR outcome = '') AND status IN ?",
		[]string{model.TradeStatusClosed, model.TradeStatusExpired, model.TradeStatusRejected}).
		Find(&records).Error
	if err != nil {
		return fmt.Errorf("fetch rows without outcome: %w", err)
	}

	for i := range records {
		record := &records[i]

		outcome := model.OutcomeCancelled
		if record.Status == model.TradeStatusClosed {
			switch {
			case record.TP1Hit && record.TP2Hit:
				outcome = model.OutcomeFullWin
			case record.TP1Hit && record.SLHit:
				outcome = model.OutcomePartialWin
			case record.SLHit:
				outcome = model.OutcomeLoss
			default:
				outcome = model.OutcomeClosed
			}
		}

		if err := db.Model(&model.TradeRecord{}).
			Where("id = ?", record.ID).
			Update("outcome", outcome).Error; err != nil {
			return fmt.Errorf("backfill outcome for trade %s: %w", record.TradeID, err)
		}
	}

	return nil
}
