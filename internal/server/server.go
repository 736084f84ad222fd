// Package server exposes the floor plan service over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seatwise/floorplan/internal/employees"
	"github.com/seatwise/floorplan/internal/floorplan"
	httpmiddleware "github.com/seatwise/floorplan/internal/http"
	"github.com/seatwise/floorplan/internal/store"
)

// FloorPlanServer handles the HTTP API. It is a thin shell: all domain
// rules live in the floorplan service.
type FloorPlanServer struct {
	service   *floorplan.Service
	directory *employees.Directory
}

// NewFloorPlanServer creates the API server. The directory may be nil when
// no employee roster is configured; employee auth then always fails.
func NewFloorPlanServer(service *floorplan.Service, directory *employees.Directory) *FloorPlanServer {
	return &FloorPlanServer{service: service, directory: directory}
}

// Handler builds the route table.
func (s *FloorPlanServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/desks", s.handleListDesks)
	mux.HandleFunc("GET /api/desks/{identifier}", s.handleGetDesk)
	mux.HandleFunc("POST /api/desks/{identifier}/assign", s.handleBookDesk)
	mux.HandleFunc("POST /api/assignment-info", s.handleAssignmentInfo)
	mux.HandleFunc("POST /api/layout/update", s.handleLayoutUpdate)
	mux.HandleFunc("POST /api/assignments/{id}/end", s.handleEndAssignment)
	mux.HandleFunc("DELETE /api/block-zones/{id}", s.handleDeleteBlockZone)
	mux.HandleFunc("POST /api/employee-auth", s.handleEmployeeAuth)

	return httpmiddleware.ClientIPMiddleware()(mux)
}

func (s *FloorPlanServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *FloorPlanServer) handleListDesks(w http.ResponseWriter, r *http.Request) {
	at, err := parseReferenceTime(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	desks, err := s.service.ProjectFloor(r.Context(), at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"desks": desks})
}

func (s *FloorPlanServer) handleGetDesk(w http.ResponseWriter, r *http.Request) {
	at, err := parseReferenceTime(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	desk, err := s.service.ProjectDesk(r.Context(), r.PathValue("identifier"), at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desk)
}

func (s *FloorPlanServer) handleBookDesk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssigneeName string     `json:"assignee_name"`
		End          *time.Time `json:"end"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	desk, err := s.service.BookDesk(r.Context(), r.PathValue("identifier"), req.AssigneeName, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desk)
}

func (s *FloorPlanServer) handleAssignmentInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssigneeName string `json:"assignee_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	info, err := s.service.LookupAssignment(r.Context(), req.AssigneeName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// layoutUpdateRequest is the wire form of a batch: the payload shape of
// data depends on the action.
type layoutUpdateRequest struct {
	Action floorplan.Action `json:"action"`
	Cells  []floorplan.Cell `json:"cells"`
	Data   json.RawMessage  `json:"data"`
}

func (s *FloorPlanServer) handleLayoutUpdate(w http.ResponseWriter, r *http.Request) {
	var wire layoutUpdateRequest
	if err := decodeJSON(r, &wire); err != nil {
		writeError(w, r, err)
		return
	}

	req := &floorplan.BatchRequest{Action: wire.Action, Cells: wire.Cells}
	if len(wire.Data) > 0 {
		var err error
		switch wire.Action {
		case floorplan.ActionAssign:
			req.Layout = &floorplan.LayoutData{}
			err = json.Unmarshal(wire.Data, req.Layout)
		case floorplan.ActionAssignment:
			req.Assignment = &floorplan.AssignmentData{}
			err = json.Unmarshal(wire.Data, req.Assignment)
		case floorplan.ActionBlock:
			req.BlockZone = &floorplan.BlockZoneData{}
			err = json.Unmarshal(wire.Data, req.BlockZone)
		}
		if err != nil {
			writeError(w, r, badRequest("invalid data payload"))
			return
		}
	}

	result, err := s.service.ApplyLayoutBatch(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *FloorPlanServer) handleEndAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, badRequest("invalid assignment id"))
		return
	}
	if err := s.service.EndAssignment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Assignment ended."})
}

func (s *FloorPlanServer) handleDeleteBlockZone(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, badRequest("invalid block-out zone id"))
		return
	}
	if err := s.service.DeleteBlockZone(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Block-out zone removed."})
}

func (s *FloorPlanServer) handleEmployeeAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LastName  string `json:"last_name"`
		Extension string `json:"extension"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if s.directory == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Employee lookup is not configured."})
		return
	}

	employee, err := s.directory.Match(req.LastName, req.Extension)
	if errors.Is(err, employees.ErrNoMatch) {
		zerolog.Ctx(r.Context()).Warn().
			Str("remote_ip", httpmiddleware.ClientIPFromContext(r.Context())).
			Msg("employee auth rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No matching employee found."})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": employee.FullName()})
}

func parseReferenceTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequest("at must be an RFC 3339 timestamp")
	}
	return at, nil
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(message string) error {
	return &httpError{status: http.StatusBadRequest, message: message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		he *httpError
		ve *floorplan.ValidationError
	)
	switch {
	case errors.As(err, &he):
		writeJSON(w, he.status, map[string]string{"error": he.message})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, store.ErrDeskNotFound),
		errors.Is(err, store.ErrDepartmentNotFound),
		errors.Is(err, store.ErrAssignmentNotFound),
		errors.Is(err, store.ErrBlockZoneNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrCellOccupied):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
