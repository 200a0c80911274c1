package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/boardsync/pkg/collab"
	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

// statusSource is the part of *realtime.Client the ops server reads.
type statusSource interface {
	State() realtime.State
	Attempts() int
	SessionID() string
	CurrentRoom() (protocol.RoomID, bool)
}

type healthResponse struct {
	State     string           `json:"state"`
	Attempts  int              `json:"attempts"`
	SessionID string           `json:"sessionId"`
	Room      *protocol.RoomID `json:"room,omitempty"`
}

// opsRouter serves /metrics, /healthz and, when tracker is set,
// /rooms/{room} presence snapshots.
func opsRouter(client statusSource, gatherer prometheus.Gatherer, tracker *collab.Tracker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			State:     client.State().String(),
			Attempts:  client.Attempts(),
			SessionID: client.SessionID(),
		}
		if room, ok := client.CurrentRoom(); ok {
			resp.Room = &room
		}
		status := http.StatusOK
		if client.State() != realtime.StateConnected {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})

	if tracker != nil {
		r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
			rooms := tracker.Rooms()
			if rooms == nil {
				rooms = []protocol.RoomID{}
			}
			writeJSON(w, http.StatusOK, rooms)
		})
		r.Get("/rooms/{room}", func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "room"), 10, 64)
			if err != nil {
				http.Error(w, "invalid room id", http.StatusBadRequest)
				return
			}
			snap, ok := tracker.Snapshot(protocol.RoomID(id))
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
