package trading

import (
	"math"

	"trading-simulator/src/helpers"
	"trading-simulator/src/models"
	"trading-simulator/src/utils"
)

const (
	shuffleRounds = 10
	// maxQueuedPoints caps the pending prices of one lobby symbol, about 33 days
	// of synthetic points at the default interval.
	maxQueuedPoints = 25000
)

// -----------------------------------------------------------------------------

// Change queues a directed move on a lobby's symbol: a guided move towards
// direction, a prolongation of duration points, and a guided move back.
func (e *Engine) Change(cmd models.MChangeCommand) error {
	if err := helpers.ValidateChangeCommand(cmd, e.symbols); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ensureLobbyLocked(cmd.Lobby) {
		e.updateHistoryLocked(cmd.Lobby, e.real.Snapshot())
	}

	if _, ok := e.basePriceLocked(cmd.Lobby, cmd.Symbol); !ok {
		return helpers.NewDataSourceError("no price history for "+cmd.Symbol+" yet", nil)
	}

	percent := cmd.Percent + e.rng.Float64()/2*utils.MinusPlus(e.rng)
	reversed := models.DirectionDown
	if cmd.Direction == models.DirectionDown {
		reversed = models.DirectionUp
	}

	before := len(e.queues[cmd.Lobby][cmd.Symbol])
	if planned := 2*guideParts(percent) + cmd.Duration; before+planned > maxQueuedPoints {
		return helpers.NewValidationError("%s in lobby %s has %d pending points, cannot queue %d more (max %d)",
			cmd.Symbol, cmd.Lobby, before, planned, maxQueuedPoints)
	}
	e.guideGraphLocked(cmd.Lobby, cmd.Symbol, cmd.Direction, percent)
	e.prolongLastChangeLocked(cmd.Lobby, cmd.Symbol, cmd.Duration)
	e.guideGraphLocked(cmd.Lobby, cmd.Symbol, reversed, percent)

	e.Logger.Info("Queued %s %s %.2f%% on %s (%d points)", cmd.Symbol, cmd.Direction, percent, cmd.Lobby,
		len(e.queues[cmd.Lobby][cmd.Symbol])-before)
	return nil
}

// -----------------------------------------------------------------------------

// GuideGraph splits percent into uneven sub-moves and queues the resulting
// prices. It returns the number of queued points.
func (e *Engine) GuideGraph(lobby, symbol, direction string, percent float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		return 0, helpers.NewValidationError("percent must be finite")
	}
	if _, ok := e.basePriceLocked(lobby, symbol); !ok {
		return 0, helpers.NewDataSourceError("no price history for "+symbol+" in lobby "+lobby, nil)
	}
	if n := len(e.queues[lobby][symbol]); n+guideParts(percent) > maxQueuedPoints {
		return 0, helpers.NewValidationError("move of %.2f%% does not fit the %d pending points of %s", percent, n, symbol)
	}
	return e.guideGraphLocked(lobby, symbol, direction, percent), nil
}

// guideParts is the number of sub-moves a guided move of percent is split into.
func guideParts(percent float64) int {
	if math.Abs(percent) > maxQueuedPoints {
		return maxQueuedPoints + 1
	}
	times := int(math.Round(percent)) * 6
	if times < 1 {
		times = 1
	}
	return times
}

func (e *Engine) guideGraphLocked(lobby, symbol, direction string, percent float64) int {
	parts := utils.ChunkNum(e.rng, percent, guideParts(percent), shuffleRounds)

	for i, p := range parts {
		last, _ := e.basePriceLocked(lobby, symbol)

		change := last * (p / 100)
		next := last - change
		if direction == models.DirectionUp {
			next = last + change
		}

		if i != len(parts)-1 {
			next += e.rng.Float64() * change * utils.MinusPlus(e.rng)
		}

		e.queues[lobby][symbol] = append(e.queues[lobby][symbol], next)
	}

	return len(parts)
}

// -----------------------------------------------------------------------------

// ProlongLastChange queues duration noisy points around the last queued price,
// each deviating by at most the size of the last queued step. The queue never
// grows past maxQueuedPoints; the number of queued points is returned.
func (e *Engine) ProlongLastChange(lobby, symbol string, duration int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prolongLastChangeLocked(lobby, symbol, duration)
}

func (e *Engine) prolongLastChangeLocked(lobby, symbol string, duration int) int {
	queue := e.queues[lobby][symbol]
	if room := maxQueuedPoints - len(queue); duration > room {
		duration = room
	}
	if len(queue) == 0 || duration <= 0 {
		return 0
	}

	last := queue[len(queue)-1]
	penult := last
	if len(queue) > 1 {
		penult = queue[len(queue)-2]
	} else if p, ok := e.history[lobby][symbol].Last(e.primaryRange); ok {
		penult = p.Price
	}

	tolerance := last - penult
	for i := 0; i < duration; i++ {
		queue = append(queue, last+e.rng.Float64()*tolerance*utils.MinusPlus(e.rng))
	}
	e.queues[lobby][symbol] = queue

	return duration
}

// -----------------------------------------------------------------------------

// ApplyFakedHistory materializes at most one queued price per symbol of every
// lobby with pending prices, once fakeInterval has passed since the symbol's
// last point. Every range is shifted and appended so lengths never change.
// It returns the number of points written.
func (e *Engine) ApplyFakedHistory() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UnixMilli()
	applied := 0

	for _, lobby := range e.queuedLobbiesLocked() {
		hist := e.history[lobby]

		for _, s := range e.symbols {
			queue := e.queues[lobby][s.Symbol]
			ts := hist[s.Symbol]
			if len(queue) == 0 || len(ts[e.primaryRange]) == 0 {
				continue
			}

			lastTs := latestTimestamp(ts)
			if lastTs+e.fakeInterval > now {
				continue
			}

			point := models.MTimeSeriesPoint{Timestamp: lastTs + e.fakeInterval, Price: queue[0]}
			if len(queue) == 1 {
				e.queues[lobby][s.Symbol] = nil
			} else {
				e.queues[lobby][s.Symbol] = queue[1:]
			}

			for label, points := range ts {
				if len(points) > 0 {
					points = points[1:]
				}
				ts[label] = append(points, point)
			}
			applied++
		}
	}

	return applied
}

// -----------------------------------------------------------------------------

// basePriceLocked is the price the next guided step starts from: the newest
// queued price, else the newest point of the primary range.
func (e *Engine) basePriceLocked(lobby, symbol string) (float64, bool) {
	if queue := e.queues[lobby][symbol]; len(queue) > 0 {
		return queue[len(queue)-1], true
	}
	if p, ok := e.history[lobby][symbol].Last(e.primaryRange); ok {
		return p.Price, true
	}
	return 0, false
}

func latestTimestamp(ts models.MTimeSeries) int64 {
	var latest int64
	for _, points := range ts {
		if n := len(points); n > 0 && points[n-1].Timestamp > latest {
			latest = points[n-1].Timestamp
		}
	}
	return latest
}
