package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams bus events as server-sent events. The stream opens
// with a hello frame so clients know the subscription is live before the
// first event lands; every later frame is one event as compact JSON.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.bus.Register()
	defer sub.Close()

	fmt.Fprint(w, "event: hello\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.log.Errorw("encode event", "type", evt.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
