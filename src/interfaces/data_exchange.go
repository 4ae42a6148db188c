package interfaces

// -----------------------------------------------------------------------------
// IBroadcaster pushes events to every connected client (fire-and-forget).
// -----------------------------------------------------------------------------

type IBroadcaster interface {
	// Emit sends payload under the given event name.
	Emit(event string, payload interface{})
}

// -----------------------------------------------------------------------------
// ISessionRegistry exposes the lobbies referenced by connected sessions.
// -----------------------------------------------------------------------------

type ISessionRegistry interface {
	// ActiveLobbyIDs returns the distinct lobby ids of current sessions.
	ActiveLobbyIDs() []string
}
