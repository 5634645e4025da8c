// Package http exposes the station overlay to the chart host as JSON, plus
// health, readiness and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/pipeline"
)

// maxBodyBytes caps PUT bodies; viewports and fixes are a few dozen bytes.
const maxBodyBytes = 64 << 10

// defaultHistoryLimit is used when /history has no limit parameter.
const defaultHistoryLimit = 24

// StationStore holds the station snapshot, viewport and vessel fix.
type StationStore interface {
	sharedobs.ReadinessChecker
	SetViewport(vp domain.Viewport) []domain.StationRecord
	Visible() []domain.StationRecord
	At(lat, lon float64) (domain.CursorHit, bool)
	SetPosition(g domain.Geo) error
	Position() (domain.Geo, bool)
}

// Refresher reloads the station set and looks up per-station observations.
type Refresher interface {
	Refresh(ctx context.Context) (pipeline.RefreshResult, error)
	Observation(ctx context.Context, stationID string) (domain.StationRecord, bool, error)
	History(ctx context.Context, stationID string, limit int) ([]domain.StationRecord, error)
}

// Forecaster fetches NWS forecasts and alerts for a position.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) ([]domain.ForecastRow, bool, error)
	ActiveAlert(ctx context.Context, lat, lon float64) (domain.Alert, bool, error)
}

// Server serves the overlay API.
type Server struct {
	httpServer *http.Server
	store      StationStore
	refresher  Refresher
	forecaster Forecaster
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the overlay routes and /healthz,
// /readyz, and /metrics.
func NewServer(addr string, st StationStore, refresher Refresher, forecaster Forecaster, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:      st,
		refresher:  refresher,
		forecaster: forecaster,
		logger:     logger,
	}

	mux.HandleFunc("PUT /viewport", s.handleViewport)
	mux.HandleFunc("GET /stations/visible", s.handleVisible)
	mux.HandleFunc("GET /stations/at", s.handleAt)
	mux.HandleFunc("GET /stations/{id}/observation", s.handleObservation)
	mux.HandleFunc("GET /stations/{id}/history", s.handleHistory)
	mux.HandleFunc("PUT /position", s.handlePosition)
	mux.HandleFunc("GET /forecast", s.handleForecast)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(st))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var vp domain.Viewport
	if err := decodeBody(w, r, &vp); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.store.SetViewport(vp))
}

func (s *Server) handleVisible(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.store.Visible())
}

func (s *Server) handleAt(w http.ResponseWriter, r *http.Request) {
	g, ok, err := queryPoint(r)
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	hit, found := s.store.At(g.Lat, g.Lon)
	if !found {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]bool{"found": false})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, struct {
		Found bool `json:"found"`
		domain.CursorHit
	}{true, hit})
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok, err := s.refresher.Observation(r.Context(), id)
	if err != nil {
		s.upstreamError(w, "observation", err, "station", id)
		return
	}
	if !ok {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"supported": false, "station": id})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, struct {
		Supported bool `json:"supported"`
		domain.StationRecord
	}{true, rec})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := s.refresher.History(r.Context(), id, limit)
	if err != nil {
		s.upstreamError(w, "history", err, "station", id)
		return
	}
	if history == nil {
		history = []domain.StationRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, history)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var g domain.Geo
	if err := decodeBody(w, r, &g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetPosition(g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, g)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupPoint(w, r)
	if !ok {
		return
	}
	rows, found, err := s.forecaster.Forecast(r.Context(), g.Lat, g.Lon)
	if err != nil {
		s.upstreamError(w, "forecast", err, "lat", g.Lat, "lon", g.Lon)
		return
	}
	if !found {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"available": true, "rows": rows})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	g, ok := s.lookupPoint(w, r)
	if !ok {
		return
	}
	alert, active, err := s.forecaster.ActiveAlert(r.Context(), g.Lat, g.Lon)
	if err != nil {
		s.upstreamError(w, "alerts", err, "lat", g.Lat, "lon", g.Lon)
		return
	}
	if !active {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"active": false, "message": domain.NoAlertsMessage})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, struct {
		Active bool `json:"active"`
		domain.Alert
	}{true, alert})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.refresher.Refresh(r.Context())
	if err != nil {
		s.upstreamError(w, "refresh", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

// lookupPoint resolves the query position, falling back to the vessel fix.
func (s *Server) lookupPoint(w http.ResponseWriter, r *http.Request) (domain.Geo, bool) {
	g, ok, err := queryPoint(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Geo{}, false
	}
	if ok {
		return g, true
	}
	if g, ok = s.store.Position(); ok {
		return g, true
	}
	writeError(w, http.StatusConflict, "no position: pass lat and lon or PUT /position first")
	return domain.Geo{}, false
}

func (s *Server) upstreamError(w http.ResponseWriter, op string, err error, attrs ...any) {
	s.logger.Warn(op+" failed", append(attrs, "error", err)...)
	if errors.Is(err, domain.ErrTransportFailure) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// queryPoint reads lat and lon query parameters. Both absent reports false.
func queryPoint(r *http.Request) (domain.Geo, bool, error) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		return domain.Geo{}, false, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Geo{}, false, fmt.Errorf("invalid lat %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return domain.Geo{}, false, fmt.Errorf("invalid lon %q", lonStr)
	}
	g := domain.Geo{Lat: lat, Lon: lon}
	if !g.Valid() {
		return domain.Geo{}, false, fmt.Errorf("position out of range: lat=%g lon=%g", lat, lon)
	}
	return g, true, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
