package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/mw"
)

func init() { Register("recordings", registerRecordings) }

// No timeout middleware: downloads are bounded by the server WriteTimeout.
func registerRecordings(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.DownloadBurst,
		RefillPerIPPerMin: d.DownloadRefillPerMin,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
	})
	r.With(limit).Get("/recordings/{name}", handlers.Recording(d))
}
