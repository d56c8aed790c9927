// Package handlers exposes the read-only HTTP API over stored datastreams.
package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"datastream-pipeline/internal/models"
	"datastream-pipeline/internal/repository"
	"datastream-pipeline/internal/services"
	"datastream-pipeline/pkg/logging"
	"datastream-pipeline/pkg/metrics"
)

// ErrorResponse is the JSON body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DatastreamResponse is one datastream in list replies
type DatastreamResponse struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Name      string    `json:"name"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// DatasetResponse is one stored dataset record
type DatasetResponse struct {
	ID        string    `json:"id"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// VariableResponse is one variable of a data reply. Missing samples are
// null; flag variables carry integer values instead.
type VariableResponse struct {
	Name   string                 `json:"name"`
	Dims   []string               `json:"dims"`
	Units  string                 `json:"units,omitempty"`
	Attrs  map[string]interface{} `json:"attrs,omitempty"`
	Values []*float64             `json:"values,omitempty"`
	Flags  []int64                `json:"flags,omitempty"`
}

// DataResponse is the merged data of one datastream over an interval
type DataResponse struct {
	Datastream string             `json:"datastream"`
	Samples    int                `json:"samples"`
	Variables  []VariableResponse `json:"variables"`
}

// DatastreamHandlers serves the datastream query API
type DatastreamHandlers struct {
	service *services.DatastreamService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDatastreamHandlers creates the handler set
func NewDatastreamHandlers(service *services.DatastreamService, logger *logging.StructuredLogger, collector *metrics.Collector) *DatastreamHandlers {
	return &DatastreamHandlers{service: service, logger: logger, metrics: collector}
}

// Register mounts the API routes on the router
func (h *DatastreamHandlers) Register(r *mux.Router) {
	r.HandleFunc("/api/datastreams", h.ListDatastreams).Methods(http.MethodGet)
	r.HandleFunc("/api/datastreams/{id}/datasets", h.ListDatasets).Methods(http.MethodGet)
	r.HandleFunc("/api/datastreams/{id}/data", h.GetData).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// ListDatastreams handles GET /api/datastreams
func (h *DatastreamHandlers) ListDatastreams(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListDatastreams(r.Context())
	if err != nil {
		h.serverError(w, r, "/api/datastreams", err)
		return
	}

	out := make([]DatastreamResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, DatastreamResponse{
			ID:        rec.ID,
			Location:  rec.Location,
			Name:      rec.Name,
			Level:     rec.Level,
			CreatedAt: rec.CreatedAt,
		})
	}
	h.writeJSON(w, r, "/api/datastreams", http.StatusOK, out)
}

// ListDatasets handles GET /api/datastreams/{id}/datasets
func (h *DatastreamHandlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	interval, ok := h.parseInterval(w, r, "/api/datastreams/{id}/datasets")
	if !ok {
		return
	}

	records, err := h.service.ListDatasets(r.Context(), id, interval)
	if err != nil {
		h.serverError(w, r, "/api/datastreams/{id}/datasets", err)
		return
	}

	out := make([]DatasetResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, DatasetResponse{
			ID:        rec.ID.String(),
			BeginTime: rec.BeginTime,
			EndTime:   rec.EndTime,
			CreatedAt: rec.CreatedAt,
		})
	}
	h.writeJSON(w, r, "/api/datastreams/{id}/datasets", http.StatusOK, out)
}

// GetData handles GET /api/datastreams/{id}/data
func (h *DatastreamHandlers) GetData(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/datastreams/{id}/data"
	id := mux.Vars(r)["id"]

	interval, ok := h.parseInterval(w, r, endpoint)
	if !ok {
		return
	}

	ds, err := h.service.GetData(r.Context(), id, interval)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, r, endpoint, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.serverError(w, r, endpoint, err)
		return
	}

	wanted := varFilter(r.URL.Query().Get("vars"))
	resp := DataResponse{
		Datastream: ds.Name,
		Samples:    ds.Dims[models.TimeDim],
	}
	for _, name := range ds.VarNames() {
		if wanted != nil && !wanted[name] && !wanted[strings.TrimPrefix(name, "qc_")] {
			continue
		}
		resp.Variables = append(resp.Variables, toVariableResponse(ds.Var(name)))
	}
	h.writeJSON(w, r, endpoint, http.StatusOK, resp)
}

// Health handles GET /healthz
func (h *DatastreamHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.HealthCheck(r.Context()); err != nil {
		h.writeError(w, r, "/healthz", http.StatusServiceUnavailable, "unhealthy", err.Error())
		return
	}
	h.writeJSON(w, r, "/healthz", http.StatusOK, map[string]string{"status": "ok"})
}

// parseInterval reads optional begin/end query parameters in RFC 3339 or
// epoch-seconds form.
func (h *DatastreamHandlers) parseInterval(w http.ResponseWriter, r *http.Request, endpoint string) (models.Interval, bool) {
	var interval models.Interval
	var err error

	if raw := r.URL.Query().Get("begin"); raw != "" {
		if interval.Begin, err = parseTime(raw); err != nil {
			h.writeError(w, r, endpoint, http.StatusBadRequest, "bad_request", "invalid begin: "+err.Error())
			return interval, false
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if interval.End, err = parseTime(raw); err != nil {
			h.writeError(w, r, endpoint, http.StatusBadRequest, "bad_request", "invalid end: "+err.Error())
			return interval, false
		}
	}
	if !interval.IsZero() && !interval.End.After(interval.Begin) {
		h.writeError(w, r, endpoint, http.StatusBadRequest, "bad_request", "end must be after begin")
		return interval, false
	}
	return interval, true
}

// parseTime accepts RFC 3339 timestamps or epoch seconds
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, err
	}
	return models.EpochToTime(sec), nil
}

// varFilter parses the comma-separated vars query parameter
func varFilter(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out[name] = true
		}
	}
	return out
}

// toVariableResponse converts a variable for JSON output, mapping missing
// samples to null.
func toVariableResponse(v *models.Variable) VariableResponse {
	out := VariableResponse{
		Name:  v.Name,
		Dims:  v.Dims,
		Units: v.Attrs.Units(),
		Attrs: v.Attrs,
	}
	if v.Values != nil {
		out.Values = make([]*float64, len(v.Values))
		for i := range v.Values {
			if !math.IsNaN(v.Values[i]) {
				val := v.Values[i]
				out.Values[i] = &val
			}
		}
	}
	out.Flags = v.Ints
	return out
}

// writeJSON serializes a successful reply and records API metrics
func (h *DatastreamHandlers) writeJSON(w http.ResponseWriter, r *http.Request, endpoint string, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error(r.Context(), "[API] Failed to encode response", logging.Fields{
			"endpoint": endpoint,
		}, err)
	}
	if h.metrics != nil {
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(status))
	}
}

// writeError serializes an error reply and records API metrics
func (h *DatastreamHandlers) writeError(w http.ResponseWriter, r *http.Request, endpoint string, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
	if h.metrics != nil {
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(status))
		h.metrics.RecordAPIError(code, endpoint)
	}
}

// serverError logs and replies with a 500
func (h *DatastreamHandlers) serverError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	h.logger.Error(r.Context(), "[API] Request failed", logging.Fields{
		"endpoint": endpoint,
		"path":     r.URL.Path,
	}, err)
	h.writeError(w, r, endpoint, http.StatusInternalServerError, "internal_error", "internal server error")
}
