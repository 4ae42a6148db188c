package interfaces

import "trading-simulator/src/models"

// -----------------------------------------------------------------------------
// IHistoryArchive persists the real (non-synthetic) history between restarts.
// -----------------------------------------------------------------------------

type IHistoryArchive interface {

	// Initialize opens the connection and creates the schema if needed.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveRealHistory replaces the archived series of every symbol present in history.
	SaveRealHistory(history models.MHistory) error

	// -----------------------------------------------------------------------------

	// LoadRealHistory returns everything archived, ordered by timestamp per range.
	LoadRealHistory() (models.MHistory, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
