package models

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// MOrder is one synthetic trade on the order tape.
type MOrder struct {
	Price  float64 `json:"price"`
	Amount string  `json:"amount"` // fixed to 10 fractional digits
	Time   string  `json:"time"`   // HH:MM:SS local wall clock
	Action string  `json:"action"`
}

// MOrderBook maps a symbol to its orders, newest first.
type MOrderBook map[string][]MOrder
