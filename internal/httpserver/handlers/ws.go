package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
)

// WebSocket upgrades the request and blocks until the client is gone.
func WebSocket(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Accept logs and answers failed upgrades itself.
		_ = d.Conns.Accept(w, r, d.OnMessage)
	}
}
