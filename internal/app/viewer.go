// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/measure"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // start, stop, locate
}

type WSResponse struct {
	Type     string            `json:"type"` // frame, error, state, position
	Marker   *Marker           `json:"marker,omitempty"`
	State    tracking.State    `json:"state,omitempty"`
	Position *PositionResponse `json:"position,omitempty"`
	Code     int               `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// Marker is a rendered frame with the marker image and WGS84 position.
type Marker struct {
	tracking.Frame
	Asset string  `json:"asset"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
}

// TrackResponse is the retained trajectory.
type TrackResponse struct {
	tracking.Snapshot
	Path   [][2]float64 `json:"path"` // lon/lat
	Length string       `json:"length"`
}

// ViewResponse is the initial map view.
type ViewResponse struct {
	Center         [2]float64 `json:"center"` // lon/lat
	CenterMercator [2]float64 `json:"center_mercator"`
	Zoom           int        `json:"zoom"`
}

// PositionResponse is the sensor's last known position.
type PositionResponse struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Label string  `json:"label"`
}

// MeasureResponse labels a measured geometry.
type MeasureResponse struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Viewer renders the tracked marker once per frame and serves it over HTTP
// and WebSocket.
type Viewer struct {
	cfg     *config.Config
	session *tracking.Session
	clock   timeutil.Clock
	log     *slog.Logger

	mu       sync.RWMutex
	marker   Marker
	hasFrame bool
	clients  map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(resp)
}

// NewViewer creates a viewer for session.
func NewViewer(cfg *config.Config, session *tracking.Session, clock timeutil.Clock) *Viewer {
	return &Viewer{
		cfg:     cfg,
		session: session,
		clock:   clock,
		log:     slog.With("component", "viewer"),
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler returns the viewer's routes.
func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/marker", v.handleMarker)
	mux.HandleFunc("GET /api/track", v.handleTrack)
	mux.HandleFunc("GET /api/view", v.handleView)
	mux.HandleFunc("GET /api/position", v.handlePosition)
	mux.HandleFunc("POST /api/tracking/start", v.handleStart)
	mux.HandleFunc("POST /api/tracking/stop", v.handleStop)
	mux.HandleFunc("POST /api/measure", handleMeasure)

	mux.HandleFunc("/ws", v.handleWS)

	// Static files from the web dir as the root
	mux.Handle("/", http.FileServer(http.Dir(v.cfg.WebStaticDir)))
	return mux
}

// RunFrames renders a frame every RENDER_INTERVAL_MS and forwards sensor
// errors to WebSocket clients until ctx is done.
func (v *Viewer) RunFrames(ctx context.Context) error {
	ticker := v.clock.NewTicker(time.Duration(v.cfg.RenderIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	errs := v.session.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			v.renderFrame(now)
		case serr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			v.broadcast(WSResponse{Type: "error", Code: serr.Code, Message: serr.Message})
		}
	}
}

// renderFrame queries the marker position for now. Nothing is rendered while
// the session is stopped.
func (v *Viewer) renderFrame(now time.Time) {
	if v.session.State() != tracking.StateTracking {
		return
	}
	frame, ok := v.session.FrameAt(now.UnixMilli())
	if !ok {
		return
	}
	m := newMarker(frame)

	v.mu.Lock()
	v.marker, v.hasFrame = m, true
	v.mu.Unlock()

	v.broadcast(WSResponse{Type: "frame", Marker: &m})
}

func newMarker(f tracking.Frame) Marker {
	ll := measure.ToLonLat(f.Point.Orb())
	return Marker{Frame: f, Asset: f.Variant.Asset(), Lon: ll.Lon(), Lat: ll.Lat()}
}

func (v *Viewer) start() error {
	if err := v.session.Start(); err != nil {
		return err
	}
	v.broadcast(WSResponse{Type: "state", State: v.session.State()})
	return nil
}

func (v *Viewer) stop() {
	v.session.Stop()

	v.mu.Lock()
	v.marker, v.hasFrame = Marker{}, false
	v.mu.Unlock()

	v.broadcast(WSResponse{Type: "state", State: v.session.State()})
}

func (v *Viewer) position() (PositionResponse, bool) {
	p, ok := v.session.CurrentPosition()
	if !ok {
		return PositionResponse{}, false
	}
	ll := measure.ToLonLat(p.Orb())
	return PositionResponse{X: p.X, Y: p.Y, Lon: ll.Lon(), Lat: ll.Lat(), Label: measure.FormatHDMS(ll)}, true
}

func (v *Viewer) addClient(c *wsClient) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clients[c] = struct{}{}
}

func (v *Viewer) removeClient(c *wsClient) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.clients, c)
}

func (v *Viewer) broadcast(resp WSResponse) {
	v.mu.RLock()
	clients := make([]*wsClient, 0, len(v.clients))
	for c := range v.clients {
		clients = append(clients, c)
	}
	v.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(resp); err != nil {
			// the read loop sees the closed connection and unregisters it
			v.log.Debug("websocket write error", "error", err)
			c.conn.Close()
		}
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func (v *Viewer) handleMarker(w http.ResponseWriter, r *http.Request) {
	v.mu.RLock()
	m, ok := v.marker, v.hasFrame
	v.mu.RUnlock()

	if !ok {
		http.Error(w, "no position yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (v *Viewer) handleTrack(w http.ResponseWriter, r *http.Request) {
	ll := measure.LineToLonLat(v.session.Trajectory())
	path := make([][2]float64, len(ll))
	for i, p := range ll {
		path[i] = [2]float64{p.Lon(), p.Lat()}
	}
	writeJSON(w, http.StatusOK, TrackResponse{
		Snapshot: v.session.Snapshot(),
		Path:     path,
		Length:   measure.FormatLength(ll),
	})
}

func (v *Viewer) handleView(w http.ResponseWriter, r *http.Request) {
	center := orb.Point{v.cfg.MapCenterLon, v.cfg.MapCenterLat}
	merc := project.Point(center, project.WGS84.ToMercator)
	writeJSON(w, http.StatusOK, ViewResponse{
		Center:         [2]float64{center.Lon(), center.Lat()},
		CenterMercator: [2]float64{merc.X(), merc.Y()},
		Zoom:           v.cfg.MapZoom,
	})
}

func (v *Viewer) handlePosition(w http.ResponseWriter, r *http.Request) {
	pos, ok := v.position()
	if !ok {
		http.Error(w, "position unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (v *Viewer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := v.start(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tracking.ErrClosed) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]tracking.State{"state": v.session.State()})
}

func (v *Viewer) handleStop(w http.ResponseWriter, r *http.Request) {
	v.stop()
	writeJSON(w, http.StatusOK, map[string]tracking.State{"state": v.session.State()})
}

// handleWS runs one browser connection: it receives start/stop/locate
// actions and is sent state changes, frames and sensor errors.
func (v *Viewer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	v.addClient(client)
	defer v.removeClient(client)

	if err := client.send(WSResponse{Type: "state", State: v.session.State()}); err != nil {
		return
	}

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			v.log.Debug("websocket read error", "error", err)
			return
		}

		var resp *WSResponse
		switch msg.Action {
		case "start":
			if err := v.start(); err != nil {
				resp = &WSResponse{Type: "error", Message: err.Error()}
			}
		case "stop":
			v.stop()
		case "locate":
			if pos, ok := v.position(); ok {
				resp = &WSResponse{Type: "position", Position: &pos}
			} else {
				resp = &WSResponse{Type: "error", Code: tracking.CodePositionUnavailable, Message: "position unavailable"}
			}
		default:
			resp = &WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)}
		}
		if resp == nil {
			continue
		}
		if err := client.send(*resp); err != nil {
			v.log.Debug("websocket write error", "error", err)
			return
		}
	}
}

// RunViewer serves the live tracking map until ctx is done.
func RunViewer(ctx context.Context, cfg *config.Config) error {
	clock := timeutil.RealClock{}

	sensor, closeSensor, err := newSensor(cfg, cfg.MQTTClientIDViewer, clock)
	if err != nil {
		return err
	}
	defer closeSensor()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.WebServerPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serveViewer(ctx, cfg, sensor, clock, ln)
}

// serveViewer runs the sensor, the frame loop and the web server on ln until
// ctx is done or the web server fails.
func serveViewer(ctx context.Context, cfg *config.Config, sensor runnableSensor, clock timeutil.Clock, ln net.Listener) error {
	session := newSession(cfg, sensor)
	defer session.Close()

	viewer := NewViewer(cfg, session, clock)
	server := &http.Server{
		Handler:      viewer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go runSensor(ctx, sensor, viewer.log)
	go func() { errCh <- viewer.RunFrames(ctx) }()
	go func() {
		slog.Info("web server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("web server shutdown", "error", err)
	}
	return runErr
}

// runSensor runs s until ctx is done. A sensor that stops on its own, such
// as a GPS stream at EOF, is logged and the map stays up; clients have
// already been sent the sensor error.
func runSensor(ctx context.Context, s runnableSensor, log *slog.Logger) {
	if err := s.Run(ctx); err != nil {
		log.Error("sensor stopped", "error", err)
		return
	}
	log.Debug("sensor stopped")
}
