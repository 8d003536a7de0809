package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/omnistream/omnistream/server/internal/alerts"
	"github.com/omnistream/omnistream/server/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads vehicle state from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	mux    *http.ServeMux
	now    func() time.Time
}

// New creates a Handler wired to the given store and alert engine and
// registers all routes. ae may be nil, in which case /api/v1/alerts is empty.
func New(st *store.Store, ae *alerts.Engine) http.Handler {
	h := &Handler{store: st, alerts: ae, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/vehicles", h.listVehicles)
	h.mux.HandleFunc("/api/v1/vehicles/", h.getVehicle) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: fleet state and per-state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := h.now()
	entries := h.store.List()
	resp := HealthResponse{
		VehicleCount: len(entries),
		PacketsTotal: h.store.Total(),
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	if len(entries) == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	resp.State = LevelOK
	for _, e := range entries {
		switch stateFromHints(computeDiagnostics(e.Packet, now.Sub(e.UpdatedAt))) {
		case LevelCritical:
			resp.CriticalCount++
			resp.State = LevelCritical
		case LevelWarning:
			resp.WarningCount++
			if resp.State == LevelOK {
				resp.State = LevelWarning
			}
		default:
			resp.OKCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listVehicles returns GET /api/v1/vehicles: all live vehicles.
func (h *Handler) listVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	full := r.URL.Query().Get("lidar") == "full"
	now := h.now()
	entries := h.store.List()
	out := make([]VehicleResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toVehicleResponse(e, now, full))
	}
	jsonResp(w, http.StatusOK, out)
}

// getVehicle returns GET /api/v1/vehicles/{id}: a single live vehicle.
func (h *Handler) getVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/vehicles/")
	if id == "" {
		h.listVehicles(w, r)
		return
	}

	e, ok := h.store.Get(id)
	now := h.now()
	// Stale entries that eviction has not removed yet count as gone.
	if !ok || now.Sub(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "vehicle not found")
		return
	}

	jsonResp(w, http.StatusOK, toVehicleResponse(e, now, r.URL.Query().Get("lidar") == "full"))
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: full JSON dump of all live vehicles.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, buildSnapshot(h.store, h.now()))
}

// BuildSnapshot renders every live vehicle in st. The WebSocket hub
// broadcasts the same payload that GET /api/v1/snapshot returns.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	return buildSnapshot(st, time.Now())
}

func buildSnapshot(st *store.Store, now time.Time) SnapshotResponse {
	entries := st.List()
	vehicles := make([]VehicleResponse, 0, len(entries))
	for _, e := range entries {
		vehicles = append(vehicles, toVehicleResponse(e, now, false))
	}
	return SnapshotResponse{
		Vehicles:    vehicles,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toVehicleResponse maps a store.Entry to its JSON representation.
func toVehicleResponse(e *store.Entry, now time.Time, fullLidar bool) VehicleResponse {
	p := e.Packet
	age := now.Sub(e.UpdatedAt)
	if age < 0 {
		age = 0
	}
	hints := computeDiagnostics(p, age)

	lidar := LidarSummary{Points: len(p.LidarScan)}
	if len(p.LidarScan) > 0 {
		lidar.Min, lidar.Max, lidar.Mean = lidarStats(p.LidarScan)
		if fullLidar {
			lidar.Scan = p.LidarScan
		}
	}

	return VehicleResponse{
		VehicleID:    p.VehicleID,
		State:        stateFromHints(hints),
		Tick:         p.Tick,
		Timestamp:    p.Timestamp,
		BatteryLevel: p.BatteryLevel,
		IMU: IMUResponse{
			AccelX: p.IMU.AccelX,
			AccelY: p.IMU.AccelY,
			AccelZ: p.IMU.AccelZ,
		},
		Lidar:       lidar,
		Received:    e.Received,
		FirstSeen:   e.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:    e.UpdatedAt.UTC().Format(time.RFC3339),
		AgeSeconds:  age.Seconds(),
		Diagnostics: hints,
	}
}
