package handlers

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
)

// Recording streams one recording, with range support.
func Recording(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		f, info, err := d.Files.Open(name)
		if err != nil {
			status := httpStatus(err)
			if status == http.StatusInternalServerError {
				d.Logger.Error("failed to open recording",
					logger.String("name", name), logger.Error(err))
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		defer utils.MustClose(f, "recording "+name, d.Logger)

		d.Logger.Debug("serving recording",
			logger.String("name", name),
			logger.Int64("size", info.Size()))

		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}

func httpStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidName:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
