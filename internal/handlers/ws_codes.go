// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the duel handler.
const (
	BadSubprotocolError = 3000 // Client connected without the duel subprotocol.
	ServerShutdownClose = 3001 // Server is draining connections.
)
