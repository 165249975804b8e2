// Package web provides the operator's HTTP surface: the control panel, the
// JSON API, the SSE and WebSocket event streams, the sound routes, and the
// metrics endpoint.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verhoeven/escape-controller/internal/broadcast"
	"github.com/verhoeven/escape-controller/internal/game"
)

// AudioControl is the slice of the audio player the panel needs: the sound
// commands plus the broker link status shown on the page.
type AudioControl interface {
	StartBackground(file string) error
	SwitchBackground(file string) error
	StopBackground() error
	PlayHint(file string) error
	SilenceAll() error
	IsConnected() bool
}

// Hint is one named hint track offered on the panel.
type Hint struct {
	Name string
	File string
}

// Deps carries the server's collaborators.
type Deps struct {
	Machine *game.Machine
	Bus     *broadcast.Bus
	Audio   AudioControl
	Hints   []Hint

	// Poweroff executes the host shutdown. nil disables the endpoint.
	Poweroff func() error

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	Log *zap.SugaredLogger
}

// Server serves the control panel and API over HTTP.
type Server struct {
	httpServer *http.Server
	machine    *game.Machine
	bus        *broadcast.Bus
	audio      AudioControl
	hints      []Hint
	poweroff   func() error
	log        *zap.SugaredLogger
}

// New creates a Server on addr with the given collaborators.
func New(addr string, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &Server{
		machine:  deps.Machine,
		bus:      deps.Bus,
		audio:    deps.Audio,
		hints:    deps.Hints,
		poweroff: deps.Poweroff,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/set_state", s.handleSetState)
	mux.HandleFunc("POST /api/relay/toggle", s.handleRelayToggle)
	mux.HandleFunc("POST /api/poweroff", s.handlePoweroff)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /sound/bg/{action}/{file}", s.handleSoundBG)
	mux.HandleFunc("GET /sound/hint/{name}", s.handleSoundHint)
	mux.HandleFunc("GET /sound/panic", s.handleSoundPanic)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// apiResponse is the JSON shape for command endpoints.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Name  string `json:"name,omitempty"`
	On    *bool  `json:"on,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderIndex(w, indexData{
		Snap:    s.machine.Snapshot(),
		Phases:  game.Phases,
		Hints:   s.hints,
		AudioUp: s.audio.IsConnected(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine.Snapshot())
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State string `json:"state"`
	}
	// A malformed body falls through to phase validation as an empty state.
	_ = json.NewDecoder(r.Body).Decode(&body)

	phase, ok := game.ParsePhase(strings.TrimSpace(body.State))
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid_state"})
		return
	}

	s.machine.SetPhase(phase, "admin_override")
	writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

func (s *Server) handleRelayToggle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	name := strings.TrimSpace(body.Name)
	on, ok := s.machine.ToggleRelay(name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse{OK: false, Error: "unknown_relay"})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{OK: true, Name: name, On: &on})
}

func (s *Server) handlePoweroff(w http.ResponseWriter, r *http.Request) {
	if s.machine.Phase() != game.PhaseIdle {
		writeJSON(w, http.StatusForbidden, apiResponse{OK: false, Error: "not_idle"})
		return
	}
	if s.poweroff == nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{OK: false, Error: "poweroff disabled"})
		return
	}

	s.bus.Publish(broadcast.NewSystem(broadcast.ActionPoweroff, "admin_request", time.Now()))

	if err := s.poweroff(); err != nil {
		s.log.Errorw("poweroff failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{OK: false, Error: err.Error()})
		return
	}

	s.log.Infow("poweroff requested")
	writeJSON(w, http.StatusOK, apiResponse{OK: true})
}

// bgFileRe allowlists background tracks; anything else on the bg route is
// rejected before it reaches the sound machine.
var bgFileRe = regexp.MustCompile(`(?i)^state\d+\.mp3$`)

func (s *Server) handleSoundBG(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	if !bgFileRe.MatchString(file) {
		http.Error(w, "invalid background file", http.StatusBadRequest)
		return
	}

	var err error
	switch strings.ToLower(r.PathValue("action")) {
	case "start":
		err = s.audio.StartBackground(file)
	case "switch":
		err = s.audio.SwitchBackground(file)
	case "stop":
		err = s.audio.StopBackground()
	default:
		http.Error(w, "invalid action", http.StatusBadRequest)
		return
	}

	// Commands are fire-and-forget; a failed publish is logged, not surfaced.
	if err != nil {
		s.log.Warnw("sound command failed", "error", err)
	}
	w.Write([]byte("OK"))
}

func (s *Server) handleSoundHint(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, h := range s.hints {
		if h.Name == name {
			if err := s.audio.PlayHint(h.File); err != nil {
				s.log.Warnw("hint command failed", "hint", name, "error", err)
			}
			w.Write([]byte("OK"))
			return
		}
	}
	http.Error(w, "unknown hint", http.StatusNotFound)
}

func (s *Server) handleSoundPanic(w http.ResponseWriter, r *http.Request) {
	if err := s.audio.SilenceAll(); err != nil {
		s.log.Warnw("panic command failed", "error", err)
	}
	w.Write([]byte("OK"))
}
