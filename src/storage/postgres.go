package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresArchive struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresArchive names the schema after the running executable so several
// services can share one database.
func NewPostgresArchive(cfg *models.MConfig, log *logger.Logger) (*PostgresArchive, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresArchive{
		Config: cfg,
		Schema: name,
		Logger: log.Named("PostgresArchive"),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewStorageError("open postgres", err)
	}

	// The database container may still be starting
	err = helpers.RetryWithBackoff(context.Background(), "database ping", 5, 500*time.Millisecond, d.Logger, db.Ping)
	if err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewStorageError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT,
			range_label TEXT,
			timestamp BIGINT,
			price DOUBLE PRECISION,
			PRIMARY KEY (symbol, range_label, timestamp)
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("create real_history", err)
	}

	d.Logger.Info("PostgresArchive initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) table() string {
	return fmt.Sprintf(`"%s"."real_history"`, d.Schema)
}

// -----------------------------------------------------------------------------

// SaveRealHistory replaces every given symbol's rows in one transaction.
func (d *PostgresArchive) SaveRealHistory(history models.MHistory) error {
	if len(history) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewStorageError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (symbol, range_label, timestamp, price)
		VALUES ($1, $2, $3, $4)
	`, d.table()))
	if err != nil {
		return helpers.NewStorageError("prepare insert", err)
	}
	defer stmt.Close()

	for symbol, ts := range history {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE symbol = $1`, d.table()), symbol); err != nil {
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
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) LoadRealHistory() (models.MHistory, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT symbol, range_label, timestamp, price
		FROM %s
		ORDER BY symbol, range_label, timestamp ASC
	`, d.table()))
	if err != nil {
		return nil, helpers.NewStorageError("query real_history", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
