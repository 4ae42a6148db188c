package models

// Event names pushed to clients.
const (
	EventUpdateHistory = "update-history"
	EventUpdateOrders  = "update-orders"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// MEvent is the envelope written to websocket clients and pub/sub channels.
type MEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MHistoryUpdate is the payload of update-history.
type MHistoryUpdate struct {
	Lobby   string   `json:"lobby"`
	History MHistory `json:"history"`
}

// MChangeCommand requests a directed move on a lobby's market.
type MChangeCommand struct {
	Lobby     string  `json:"lobby"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Percent   float64 `json:"percent"`
	Duration  int     `json:"duration"`
}

// Commands a websocket client may send.
const (
	CommandGetHistory = "get-history"
	CommandGetOrders  = "get-orders"
)

// MClientCommand is a message read from a websocket client.
type MClientCommand struct {
	Command string `json:"command"`
}
