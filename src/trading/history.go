package trading

import (
	"trading-simulator/src/models"
)

// -----------------------------------------------------------------------------

// AddHistory initializes a lobby if needed and merges the latest real history
// into it. Calling it again for the same lobby only merges.
func (e *Engine) AddHistory(lobby string) models.MHistory {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ensureLobbyLocked(lobby) {
		e.Logger.Debug("Lobby %s initialized", lobby)
	}
	e.updateHistoryLocked(lobby, e.real.Snapshot())

	return e.history[lobby].Clone()
}

// -----------------------------------------------------------------------------

// GetHistory returns a copy of the lobby's history. ok is false for unknown lobbies.
func (e *Engine) GetHistory(lobby string) (models.MHistoryUpdate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[lobby]
	if !ok {
		return models.MHistoryUpdate{Lobby: lobby}, false
	}
	return models.MHistoryUpdate{Lobby: lobby, History: h.Clone()}, true
}

// -----------------------------------------------------------------------------

// UpdateHistory merges real history into an existing lobby. Unknown lobbies are ignored.
func (e *Engine) UpdateHistory(lobby string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.history[lobby]; !ok {
		return
	}
	e.updateHistoryLocked(lobby, e.real.Snapshot())
}

// -----------------------------------------------------------------------------

// UpdateAllHistory merges real history into every known lobby.
func (e *Engine) UpdateAllHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for lobby := range e.history {
		e.updateHistoryLocked(lobby, e.real.Snapshot())
	}
}

// -----------------------------------------------------------------------------

// updateHistoryLocked seeds symbols the lobby has no series for and, for the
// rest, appends real points strictly newer than each range's last point. The
// oldest points are dropped by the same count so a range never grows.
// real must be a private copy; its slices end up owned by the lobby.
func (e *Engine) updateHistoryLocked(lobby string, real models.MHistory) {
	hist := e.history[lobby]

	for _, s := range e.symbols {
		realTs := real[s.Symbol]
		if len(realTs[e.primaryRange]) == 0 {
			continue
		}

		local := hist[s.Symbol]
		if len(local[e.primaryRange]) == 0 {
			hist[s.Symbol] = realTs
			continue
		}

		for label, realPoints := range realTs {
			points, ok := local[label]
			if !ok || len(points) == 0 {
				local[label] = realPoints
				continue
			}
			local[label] = mergeNewer(points, realPoints)
		}
	}
}

// mergeNewer appends the points of incoming newer than the last point of
// points, then drops the same number from the front.
func mergeNewer(points, incoming []models.MTimeSeriesPoint) []models.MTimeSeriesPoint {
	lastTs := points[len(points)-1].Timestamp

	start := len(incoming)
	for i, p := range incoming {
		if p.Timestamp > lastTs {
			start = i
			break
		}
	}
	fresh := incoming[start:]
	if len(fresh) == 0 {
		return points
	}

	size := len(points)
	merged := make([]models.MTimeSeriesPoint, 0, size+len(fresh))
	merged = append(merged, points...)
	merged = append(merged, fresh...)
	return merged[len(merged)-size:]
}
