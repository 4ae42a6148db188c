package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"trading-simulator/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// directMessage is a reply meant for a single client.
type directMessage struct {
	client  *Client
	message interface{}
}

// handleWebsockets is the main Hub loop
func (s *Server) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			s.closeAllClients()
			return

		case client := <-s.register:
			s.clientsMu.Lock()
			s.clients[client] = struct{}{}
			s.clientsMu.Unlock()

			s.Logger.Debug("Client %s joined lobby %s", client.id, client.lobby)
			s.sendInitialState(client)

		case client := <-s.unregister:
			s.removeClient(client)

		case d := <-s.direct:
			s.deliver(d.client, d.message)

		case message := <-s.broadcast:
			// Broadcast to all clients
			s.clientsMu.RLock()
			var slow []*Client
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					slow = append(slow, client)
				}
			}
			s.clientsMu.RUnlock()

			for _, client := range slow {
				s.Logger.Info("Dropping slow client %s", client.id)
				s.removeClient(client)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Server) removeClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *Server) closeAllClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

// -----------------------------------------------------------------------------

// deliver queues a message for one registered client. Hub loop only, since the
// hub is the sole closer of client.send. Replies to departed or full clients are dropped.
func (s *Server) deliver(client *Client, message interface{}) {
	s.clientsMu.RLock()
	_, ok := s.clients[client]
	s.clientsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- message:
	default:
		s.Logger.Info("Dropping reply to slow client %s", client.id)
	}
}

// sendInitialState gives a new client the order book and, when its lobby is
// already simulated, the lobby history.
func (s *Server) sendInitialState(client *Client) {
	s.deliver(client, &models.MEvent{Event: models.EventUpdateOrders, Data: s.Orders.Get()})

	if update, ok := s.History.GetHistory(client.lobby); ok {
		s.deliver(client, &models.MEvent{Event: models.EventUpdateHistory, Data: update})
	}
}

// -----------------------------------------------------------------------------
// Broadcaster / SessionRegistry Implementation
// -----------------------------------------------------------------------------

// Emit queues an event for every connected client. It never blocks; when the
// queue is full the event is dropped.
func (s *Server) Emit(event string, payload interface{}) {
	select {
	case s.broadcast <- &models.MEvent{Event: event, Data: payload}:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s", event)
	}
}

// -----------------------------------------------------------------------------

// ActiveLobbyIDs returns the distinct lobbies of connected clients, sorted.
func (s *Server) ActiveLobbyIDs() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	seen := make(map[string]struct{}, len(s.clients))
	ids := make([]string, 0, len(s.clients))
	for client := range s.clients {
		if _, ok := seen[client.lobby]; ok {
			continue
		}
		seen[client.lobby] = struct{}{}
		ids = append(ids, client.lobby)
	}
	sort.Strings(ids)
	return ids
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	lobby := c.Query("lobby")
	if lobby == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lobby query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:    uuid.NewString(),
		lobby: lobby,
		hub:   s,
		conn:  conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *Server) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse command from %s: %v, disconnecting client", client.id, err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case models.CommandGetHistory:
		s.History.AddHistory(client.lobby)
		update, _ := s.History.GetHistory(client.lobby)
		client.reply(&models.MEvent{Event: models.EventUpdateHistory, Data: update})
	case models.CommandGetOrders:
		client.reply(&models.MEvent{Event: models.EventUpdateOrders, Data: s.Orders.Get()})
	default:
		s.Logger.Debug("Ignoring command %q from %s", cmd.Command, client.id)
	}
}
