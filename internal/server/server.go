// Package server wires every component in spec.md §4 into one process: the
// three WebSocket routes (/events, /stt, /esp32/audio), the periodic loops
// (Direction, Radar Track, Alarm, status snapshot), and the outbound
// reconnecting links (STT, per-side haptics). Routing follows
// internal/pushgw/server.go's chi.Mux-with-a-routes()-method shape; nothing
// here talks to the network beyond accepting and upgrading connections.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/alarm"
	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/direction"
	"github.com/hudwear/hudserver/internal/haptics"
	"github.com/hudwear/hudserver/internal/ingress"
	"github.com/hudwear/hudserver/internal/radar"
	"github.com/hudwear/hudserver/internal/ratelog"
	"github.com/hudwear/hudserver/internal/stt"
)

// maxMessageBytes is the WebSocket message size ceiling (spec §6: 2 MiB).
const maxMessageBytes = 2 << 20

// statusInterval is the heartbeat status snapshot cadence (spec §6: 1 Hz).
const statusInterval = 1 * time.Second

// Server owns every shared component and the HTTP listener that exposes
// them over WebSocket.
type Server struct {
	cfg *config.Config
	log ratelog.Logger

	state *audiostate.State

	eventsClients *broadcast.Set
	sttClients    *broadcast.Set

	directionLoop *direction.Loop
	radarTracker  *radar.Tracker
	sttMuxer      *stt.Muxer
	alarmLoop     *alarm.Loop

	hapticsLeft  *haptics.Client
	hapticsRight *haptics.Client

	router *chi.Mux

	upgrader websocket.Upgrader
}

// New builds a Server and its component graph from cfg. Nothing runs until
// Run is called.
func New(cfg *config.Config) *Server {
	state := audiostate.New(cfg)

	eventsClients := broadcast.NewSet(ratelog.Default("events"))
	sttClients := broadcast.NewSet(ratelog.Default("stt"))

	radarTracker := radar.New(state)
	directionLoop := direction.New(state, eventsClients, radarTracker)

	sttClient := stt.NewClient(cfg, ratelog.Default("stt-client"))
	sttMuxer := stt.New(state, sttClient, sttClients, eventsClients, ratelog.Default("stt-muxer"))

	hapticsLeft := haptics.NewClient("left", cfg.ExternalHapticsLeftURL, cfg, ratelog.Default("haptics-left"))
	hapticsRight := haptics.NewClient("right", cfg.ExternalHapticsRightURL, cfg, ratelog.Default("haptics-right"))

	alarmLoop := alarm.New(state, alarm.NewBandRatioClassifier(), eventsClients, hapticsLeft, hapticsRight, ratelog.Default("alarm"))

	s := &Server{
		cfg:           cfg,
		log:           ratelog.Default("server"),
		state:         state,
		eventsClients: eventsClients,
		sttClients:    sttClients,
		directionLoop: directionLoop,
		radarTracker:  radarTracker,
		sttMuxer:      sttMuxer,
		alarmLoop:     alarmLoop,
		hapticsLeft:   hapticsLeft,
		hapticsRight:  hapticsRight,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.router = s.routes()
	return s
}

// Run starts every background loop and the HTTP listener. It blocks until
// ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go s.directionLoop.Run(ctx)
	go s.sttMuxer.Run(ctx)
	go s.alarmLoop.Run(ctx)
	go s.hapticsLeft.Run(ctx, func(ok bool) { s.state.SetHapticsSideConnected("left", ok) })
	go s.hapticsRight.Run(ctx, func(ok bool) { s.state.SetHapticsSideConnected("right", ok) })
	go s.statusLoop(ctx)

	addr := s.cfg.Host + ":" + portString(s.cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/events", s.handleEvents)
	r.Get("/stt", s.handleStt)
	r.Get("/esp32/audio", s.handleESP32Audio)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		conn, err := s.upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		closeUnknownPath(conn)
	})
	return r
}

func (s *Server) handleESP32Audio(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("esp32 upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	defer conn.Close()
	ingress.HandleESP32Audio(r.Context(), conn, r.URL.Query(), s.state, ratelog.Default("ingress-esp32"))
}

func (s *Server) handleStt(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("stt upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	defer conn.Close()
	connID := "conn_" + uuid.New().String()[:8]
	ingress.HandlePhoneMic(r.Context(), conn, connID, s.state, s.sttClients, ratelog.Default("ingress-phonemic"))
}

func closeUnknownPath(conn *websocket.Conn) {
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unknown path"), deadline)
	_ = conn.Close()
}

func portString(port int) string {
	if port == 0 {
		port = 8765
	}
	return strconv.Itoa(port)
}
