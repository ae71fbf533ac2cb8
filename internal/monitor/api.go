package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// SlotListResponse is returned by GET /api/slots
type SlotListResponse struct {
	Slots []SlotSummary `json:"slots"`
	Total int           `json:"total"`
}

// MetricsResponse is returned by GET /api/metrics. Fields the last summary
// did not carry are null.
type MetricsResponse struct {
	Available    bool     `json:"available"`
	Traditional  *uint64  `json:"traditional"`
	EdgeAI       *uint64  `json:"edge_ai"`
	ReductionPct *float64 `json:"reduction_pct"`
}

// MirroredSlotResponse is returned by GET /api/slots/{id}?source=redis.
// Events are the mirrored JSON documents, newest first.
type MirroredSlotResponse struct {
	ID     string            `json:"id"`
	Events []json.RawMessage `json:"events"`
	Total  int               `json:"total"`
}

// RawResponse is returned by GET /api/raw
type RawResponse struct {
	Messages []RawRecord `json:"messages"`
	Total    int         `json:"total"`
}

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const (
	sourceMemory = "memory"
	sourceRedis  = "redis"
)

// API serves read-only JSON snapshots of a Store. With a mirror, slot and
// metrics reads can be served from Redis instead via ?source=redis.
type API struct {
	store  *Store
	mirror *RedisMirror
	logger *slog.Logger
}

// NewAPI creates the snapshot API. mirror may be nil.
func NewAPI(store *Store, mirror *RedisMirror, logger *slog.Logger) *API {
	return &API{store: store, mirror: mirror, logger: logger}
}

// Register adds the API routes to mux
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/slots", a.HandleSlots)
	mux.HandleFunc("/api/slots/", a.HandleSlotByID)
	mux.HandleFunc("/api/metrics", a.HandleMetrics)
	mux.HandleFunc("/api/raw", a.HandleRaw)
}

// HandleSlots handles GET /api/slots
func (a *API) HandleSlots(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	slots := a.store.Slots()
	a.writeJSON(w, http.StatusOK, SlotListResponse{Slots: slots, Total: len(slots)})
}

// HandleSlotByID handles GET /api/slots/{id}?limit=n&source=memory|redis
func (a *API) HandleSlotByID(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/slots/")
	if id == "" || strings.Contains(id, "/") {
		a.writeError(w, http.StatusBadRequest, "Slot ID required", "")
		return
	}

	limit, ok := a.limit(w, r)
	if !ok {
		return
	}

	source, ok := a.source(w, r)
	if !ok {
		return
	}
	if source == sourceRedis {
		a.mirroredSlot(w, r, id, limit)
		return
	}

	view, found := a.store.Slot(id, limit)
	if !found {
		a.writeError(w, http.StatusNotFound, "Slot not found", id)
		return
	}
	a.writeJSON(w, http.StatusOK, view)
}

func (a *API) mirroredSlot(w http.ResponseWriter, r *http.Request, id string, limit int) {
	docs, err := a.mirror.RecentEvents(r.Context(), id, int64(limit))
	if err != nil {
		a.logger.Error("Failed to read mirrored events", "slot", id, "error", err)
		a.writeError(w, http.StatusBadGateway, "Redis read failed", err.Error())
		return
	}
	if len(docs) == 0 {
		a.writeError(w, http.StatusNotFound, "Slot not found", id)
		return
	}

	events := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		if !json.Valid([]byte(doc)) {
			a.logger.Warn("Skipping malformed mirrored event", "slot", id)
			continue
		}
		events = append(events, json.RawMessage(doc))
	}
	a.writeJSON(w, http.StatusOK, MirroredSlotResponse{ID: id, Events: events, Total: len(events)})
}

// HandleMetrics handles GET /api/metrics?source=memory|redis
func (a *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	source, ok := a.source(w, r)
	if !ok {
		return
	}
	if source == sourceRedis {
		a.mirroredMetrics(w, r)
		return
	}

	m, ok := a.store.Metrics()
	a.writeJSON(w, http.StatusOK, MetricsResponse{
		Available:    ok,
		Traditional:  m.Traditional,
		EdgeAI:       m.EdgeAI,
		ReductionPct: m.ReductionPct,
	})
}

func (a *API) mirroredMetrics(w http.ResponseWriter, r *http.Request) {
	fields, err := a.mirror.Metrics(r.Context())
	if err != nil {
		a.logger.Error("Failed to read mirrored metrics", "error", err)
		a.writeError(w, http.StatusBadGateway, "Redis read failed", err.Error())
		return
	}

	var resp MetricsResponse
	if v, err := strconv.ParseUint(fields["traditional"], 10, 64); err == nil {
		resp.Traditional = &v
	}
	if v, err := strconv.ParseUint(fields["edge_ai"], 10, 64); err == nil {
		resp.EdgeAI = &v
	}
	if v, err := strconv.ParseFloat(fields["reduction_pct"], 64); err == nil {
		resp.ReductionPct = &v
	}
	resp.Available = resp.Traditional != nil && resp.EdgeAI != nil && resp.ReductionPct != nil
	a.writeJSON(w, http.StatusOK, resp)
}

// HandleRaw handles GET /api/raw?limit=n
func (a *API) HandleRaw(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	limit, ok := a.limit(w, r)
	if !ok {
		return
	}
	msgs := a.store.Raw(limit)
	a.writeJSON(w, http.StatusOK, RawResponse{Messages: msgs, Total: len(msgs)})
}

func (a *API) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		a.writeError(w, http.StatusBadRequest, "Invalid limit", v)
		return 0, false
	}
	return n, true
}

func (a *API) source(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch v := r.URL.Query().Get("source"); v {
	case "", sourceMemory:
		return sourceMemory, true
	case sourceRedis:
		if a.mirror == nil {
			a.writeError(w, http.StatusServiceUnavailable, "Redis mirror not enabled", "")
			return "", false
		}
		return sourceRedis, true
	default:
		a.writeError(w, http.StatusBadRequest, "Invalid source",
			fmt.Sprintf("%q (want %s or %s)", v, sourceMemory, sourceRedis))
		return "", false
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error("Failed to encode API response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message, details string) {
	a.writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
