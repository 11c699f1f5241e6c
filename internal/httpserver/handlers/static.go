package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
)

const notFoundBody = "404 Not Found\n"

// Static serves cached UI assets by base name.
func Static(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, ok := d.Static.Get(static.ResolveName(r.URL.Path))
		if !ok {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFoundBody))
			return
		}
		for k, v := range asset.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(asset.Body); err != nil {
			d.Logger.Debug("failed to write asset",
				logger.String("asset", asset.Name), logger.Error(err))
		}
	}
}
