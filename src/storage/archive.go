package storage

import (
	"database/sql"
	"fmt"

	"trading-simulator/src/helpers"
	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
)

// NewHistoryArchive builds the archive selected by storage.db_type. It
// returns nil for "none".
func NewHistoryArchive(cfg *models.MConfig, log *logger.Logger) (interfaces.IHistoryArchive, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteArchive(cfg, log), nil
	case "postgres":
		pg, err := NewPostgresArchive(cfg, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported db_type: %s", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

// scanHistory groups (symbol, range_label, timestamp, price) rows. Rows must
// come ordered by timestamp within each range.
func scanHistory(rows *sql.Rows) (models.MHistory, error) {
	history := make(models.MHistory)

	for rows.Next() {
		var symbol, label string
		var p models.MTimeSeriesPoint
		if err := rows.Scan(&symbol, &label, &p.Timestamp, &p.Price); err != nil {
			return nil, helpers.NewStorageError("scan real_history", err)
		}

		ts, ok := history[symbol]
		if !ok {
			ts = make(models.MTimeSeries)
			history[symbol] = ts
		}
		ts[label] = append(ts[label], p)
	}

	if err := rows.Err(); err != nil {
		return nil, helpers.NewStorageError("iterate real_history", err)
	}
	return history, nil
}
