package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/handlers"
)

func init() { Register("websocket", registerWebSocket) }

func registerWebSocket(r chi.Router, d deps.Deps) {
	r.Get("/ws", handlers.WebSocket(d))
}
