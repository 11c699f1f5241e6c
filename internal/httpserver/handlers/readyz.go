package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz is ready once the UI is loaded and the recorder answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		resp := readyzResponse{Ready: true}
		if _, ok := d.Static.Get(static.IndexName); !ok {
			resp = readyzResponse{Reason: "frontend not loaded"}
		} else if err := recorderResponds(r.Context(), d); err != nil {
			resp = readyzResponse{Reason: "recorder not responding"}
		}

		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func recorderResponds(parent context.Context, d deps.Deps) error {
	ctx, cancel := context.WithTimeout(parent, time.Second)
	defer cancel()
	_, err := d.Recorder.Status(ctx)
	return err
}
