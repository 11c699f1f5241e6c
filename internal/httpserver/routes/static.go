package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/handlers"
)

func init() { Register("static", registerStatic) }

func registerStatic(r chi.Router, d deps.Deps) {
	h := handlers.Static(d)
	r.Get("/", h)
	r.Get("/{asset}", h)
}
