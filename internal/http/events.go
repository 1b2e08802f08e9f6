package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

const eventsHeartbeat = 25 * time.Second

// handleEvents streams the full list as server-sent events. The first event is
// the current list; later events follow each change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported")
		return
	}

	// Only the newest list matters, so a slow client skips intermediate ones.
	updates := make(chan []domain.Movie, 1)
	unsubscribe := s.store.Subscribe(func(list []domain.Movie) {
		select {
		case updates <- list:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- list
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case list := <-updates:
			payload, err := json.Marshal(list)
			if err != nil {
				s.logger.Printf("encode movies event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: movies\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
