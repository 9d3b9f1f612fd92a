// Package server exposes the control-plane entry points over HTTP for
// front-ends: session start/stop/configure/status and the amplifier
// controls. Clients never touch the pipeline's queues or callback state.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/audiolibrelab/opentune/internal/amp"
	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/engine"
	"github.com/audiolibrelab/opentune/internal/session"
	"github.com/audiolibrelab/opentune/internal/take"
)

// Server routes control requests to the session controller and amplifier.
type Server struct {
	controller *session.Controller
	amplifier  *amp.Amplifier
	cat        *catalog.Catalog
	addr       string

	// OnTake, when set, receives the assembled take after a successful
	// stop (used to persist the recording).
	OnTake func(*take.Take) error
}

func New(controller *session.Controller, amplifier *amp.Amplifier, cat *catalog.Catalog, addr string) *Server {
	return &Server{
		controller: controller,
		amplifier:  amplifier,
		cat:        cat,
		addr:       addr,
	}
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("POST /api/record/start", s.handleRecordStart)
	mux.HandleFunc("POST /api/record/stop", s.handleRecordStop)
	mux.HandleFunc("POST /api/record/configure", s.handleConfigure)
	mux.HandleFunc("POST /api/amp/start", s.handleAmpStart)
	mux.HandleFunc("POST /api/amp/stop", s.handleAmpStop)
	mux.HandleFunc("POST /api/amp/gain", s.handleAmpGain)
	mux.HandleFunc("POST /api/amp/mode", s.handleAmpMode)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("control server listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// StatusResponse is the JSON shape of GET /api/status.
type StatusResponse struct {
	Session   session.Status `json:"session"`
	Amplifier AmpStatus      `json:"amplifier"`
}

type AmpStatus struct {
	Active bool     `json:"active"`
	Mode   amp.Mode `json:"mode"`
	Gain   float64  `json:"gain"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Session: s.controller.Status(),
		Amplifier: AmpStatus{
			Active: s.amplifier.Active(),
			Mode:   s.amplifier.CurrentMode(),
			Gain:   s.amplifier.Gain(),
		},
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("rescan") == "true" {
		if err := s.cat.Rescan(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.cat.Devices()})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Start(); err != nil {
		status := http.StatusInternalServerError
		switch {
		case isErr(err, engine.ErrAlreadyRunning):
			status = http.StatusConflict
		case isErr(err, engine.ErrInvalidConfig):
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording"})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	t, err := s.controller.Stop()
	if err != nil {
		status := http.StatusInternalServerError
		if isErr(err, engine.ErrNotRunning) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	if s.OnTake != nil && !t.Empty() {
		if err := s.OnTake(t); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("persist take: %w", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "stopped",
		"frames":   t.Frames(),
		"duration": t.Duration().Seconds(),
	})
}

// ConfigureRequest mirrors session.Options with JSON field names.
type ConfigureRequest struct {
	Device         *int    `json:"device"`
	SampleRate     *int    `json:"sample_rate"`
	Channels       *int    `json:"channels"`
	Format         *string `json:"format"`
	BlockSize      *int    `json:"block_size"`
	LatencyMs      *int    `json:"latency_ms"`
	ClipProtect    *bool   `json:"clip_protect"`
	DitherOff      *bool   `json:"dither_off"`
	NeverDropInput *bool   `json:"never_drop_input"`
	Monitoring     *bool   `json:"monitoring"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	opts := session.Options{
		Device:         req.Device,
		SampleRate:     req.SampleRate,
		Channels:       req.Channels,
		BlockSize:      req.BlockSize,
		ClipProtect:    req.ClipProtect,
		DitherOff:      req.DitherOff,
		NeverDropInput: req.NeverDropInput,
		Monitoring:     req.Monitoring,
	}
	if req.Format != nil {
		f := engine.SampleFormat(*req.Format)
		opts.Format = &f
	}
	if req.LatencyMs != nil {
		d := time.Duration(*req.LatencyMs) * time.Millisecond
		opts.Latency = &d
	}

	if err := s.controller.Configure(opts); err != nil {
		status := http.StatusInternalServerError
		if isErr(err, session.ErrSessionActive) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "configured", "config": s.controller.Config()})
}

func (s *Server) handleAmpStart(w http.ResponseWriter, r *http.Request) {
	if err := s.amplifier.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleAmpStop(w http.ResponseWriter, r *http.Request) {
	s.amplifier.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "inactive"})
}

func (s *Server) handleAmpGain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gain float64 `json:"gain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	s.amplifier.SetGain(req.Gain)
	writeJSON(w, http.StatusOK, map[string]float64{"gain": s.amplifier.Gain()})
}

func (s *Server) handleAmpMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	mode, err := amp.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.amplifier.SetMode(mode); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "active": s.amplifier.Active()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	slog.Warn("request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isErr(err, target error) bool {
	return errors.Is(err, target)
}
