package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"IceStock/internal/model"
	"IceStock/internal/planner"
	"IceStock/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type createStoreRequest struct {
	Name       string         `json:"name" validate:"required,max=200"`
	Lat        *float64       `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon        *float64       `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	City       string         `json:"city" validate:"max=200"`
	Country    string         `json:"country" validate:"max=100"`
	BaseDemand model.Baseline `json:"base_demand"`
}

type generateRequest struct {
	Strategy string `json:"strategy"`
	Source   string `json:"source"`
}

type generateResponse struct {
	Record   *model.SuggestionRecord `json:"record"`
	Source   string                  `json:"source"`
	Warnings []string                `json:"warnings"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	store := &model.Store{
		Name:       req.Name,
		Lat:        req.Lat,
		Lon:        req.Lon,
		City:       strings.TrimSpace(req.City),
		Country:    strings.TrimSpace(req.Country),
		BaseDemand: req.BaseDemand,
	}
	if err := s.planner.RegisterStore(r.Context(), store); err != nil {
		s.log.Error().Err(err).Msg("register store")
		s.writeError(w, http.StatusInternalServerError, "could not register store")
		return
	}
	s.writeJSON(w, http.StatusCreated, store)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.planner.Stores(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list stores")
		s.writeError(w, http.StatusInternalServerError, "could not list stores")
		return
	}
	s.writeJSON(w, http.StatusOK, stores)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storeID(w, r)
	if !ok {
		return
	}
	store, err := s.planner.Store(r.Context(), id)
	if err != nil {
		s.writePlannerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, store)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storeID(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.planner.Generate(r.Context(), planner.Request{
		StoreID:  id,
		Strategy: req.Strategy,
		Source:   strings.ToLower(strings.TrimSpace(req.Source)),
	})
	if err != nil {
		s.writePlannerError(w, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	s.writeJSON(w, http.StatusCreated, generateResponse{Record: res.Record, Source: res.Source, Warnings: warnings})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.planner.History(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list suggestions")
		s.writeError(w, http.StatusInternalServerError, "could not list suggestions")
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) storeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid store id")
		return 0, false
	}
	return id, true
}

// writePlannerError maps planner and storage failures to HTTP statuses.
func (s *Server) writePlannerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "store not found")
	case errors.Is(err, planner.ErrMissingCoordinates):
		s.writeError(w, http.StatusUnprocessableEntity, "store has no latitude/longitude registered")
	case errors.Is(err, planner.ErrUnknownSource):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrForecastUnavailable):
		s.log.Warn().Err(err).Msg("forecast unavailable")
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeBody decodes a JSON body, returning io.EOF for an empty one.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be between %s", field, rangeOf(field)))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

func rangeOf(field string) string {
	if field == "lat" {
		return "-90 and 90"
	}
	return "-180 and 180"
}
