package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	AssetsCount *int   `json:"assets_loaded,omitempty"`
	Clients     *int   `json:"clients,omitempty"`
	LastReload  string `json:"last_reload,omitempty"`
	State       string `json:"state,omitempty"`
	File        string `json:"file,omitempty"`
	LastState   string `json:"last_published_state,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"recorder":   checkRecorder(r.Context(), d),
			"static":     checkStatic(d),
			"websocket":  checkConns(d),
			"statusfeed": checkStatusFeed(r.Context(), d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if !components["recorder"].OK || !components["static"].OK {
		return "critical"
	}
	if feed := components["statusfeed"]; !feed.OK && feed.Mode != "disabled" {
		return "degraded"
	}
	return "operational"
}

func checkRecorder(parent context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	st, err := d.Recorder.Status(ctx)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true, State: st.State.String(), File: st.File}
}

func checkStatic(d deps.Deps) componentStatus {
	count := d.Static.Count()
	lastReload := "never"
	if t := d.Static.LastReload(); !t.IsZero() {
		lastReload = t.Format("2006-01-02 15:04:05")
	}
	_, hasIndex := d.Static.Get(static.IndexName)
	st := componentStatus{OK: hasIndex, AssetsCount: &count, LastReload: lastReload}
	if !hasIndex {
		st.Error = static.IndexName + " not loaded"
	}
	return st
}

func checkConns(d deps.Deps) componentStatus {
	clients := 0
	if d.Conns != nil {
		clients = d.Conns.Count()
	}
	return componentStatus{OK: true, Clients: &clients}
}

func checkStatusFeed(parent context.Context, d deps.Deps) componentStatus {
	if d.StatusFeed == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "status-feed-off",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.StatusFeed.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "status-feed-off",
			Error:  "timeout",
		}
	}

	st := componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "status-feed-on",
	}
	if last, ok, err := d.StatusFeed.Latest(ctx); err != nil {
		st.Error = err.Error()
	} else if ok {
		st.LastState = last.State.String()
	}
	return st
}
