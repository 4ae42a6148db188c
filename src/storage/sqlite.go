package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteArchive struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteArchive(cfg *models.MConfig, log *logger.Logger) *SQLiteArchive {
	return &SQLiteArchive{
		Config: cfg,
		Logger: log.Named("SQLiteArchive"),
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dir := filepath.Dir(dsn); !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return helpers.NewStorageError(fmt.Sprintf("create directory %s", dir), err)
		}
	}

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("open sqlite", err)
	}

	// One writer; also keeps ":memory:" databases alive on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewStorageError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS real_history (
			symbol TEXT,
			range_label TEXT,
			timestamp INTEGER,
			price REAL,
			PRIMARY KEY (symbol, range_label, timestamp)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("create real_history", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// SaveRealHistory replaces every given symbol's rows in one transaction.
func (d *SQLiteArchive) SaveRealHistory(history models.MHistory) error {
	if len(history) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewStorageError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO real_history (symbol, range_label, timestamp, price)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return helpers.NewStorageError("prepare insert", err)
	}
	defer stmt.Close()

	for symbol, ts := range history {
		if _, err := tx.Exec("DELETE FROM real_history WHERE symbol = ?", symbol); err != nil {
			return helpers.NewStorageError(fmt.Sprintf("clear %s", symbol), err)
		}

		for label, points := range ts {
			for _, p := range points {
				if _, err := stmt.Exec(symbol, label, p.Timestamp, p.Price); err != nil {
					return helpers.NewStorageError(fmt.Sprintf("insert %s/%s", symbol, label), err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewStorageError("commit", err)
	}

	d.Logger.Debug("Archived real history for %d symbols", len(history))
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) LoadRealHistory() (models.MHistory, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, range_label, timestamp, price
		FROM real_history
		ORDER BY symbol, range_label, timestamp ASC
	`)
	if err != nil {
		return nil, helpers.NewStorageError("query real_history", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
