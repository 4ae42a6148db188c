package helpers

import (
	"math"

	"trading-simulator/src/models"
)

const (
	// maxChangePercent bounds the size of a single directed move.
	maxChangePercent = 100
	// maxChangeDuration bounds the prolongation of a single directed move.
	maxChangeDuration = 10000
)

// ValidateChangeCommand checks a directed move before it touches any lobby state.
func ValidateChangeCommand(cmd models.MChangeCommand, symbols []models.MSymbol) error {
	if cmd.Lobby == "" {
		return NewValidationError("lobby is required")
	}

	known := false
	for _, s := range symbols {
		if s.Symbol == cmd.Symbol {
			known = true
			break
		}
	}
	if !known {
		return NewValidationError("unknown symbol %q", cmd.Symbol)
	}

	if cmd.Direction != models.DirectionUp && cmd.Direction != models.DirectionDown {
		return NewValidationError("direction must be %q or %q, got %q", models.DirectionUp, models.DirectionDown, cmd.Direction)
	}

	if math.IsNaN(cmd.Percent) || math.IsInf(cmd.Percent, 0) {
		return NewValidationError("percent must be finite")
	}
	if cmd.Percent < 0 || cmd.Percent > maxChangePercent {
		return NewValidationError("percent must be within [0, %d]", maxChangePercent)
	}

	if cmd.Duration < 0 || cmd.Duration > maxChangeDuration {
		return NewValidationError("duration must be within [0, %d]", maxChangeDuration)
	}

	return nil
}
