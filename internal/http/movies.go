package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

// User-facing notices attached to mutation responses.
const (
	msgAdded        = "Movie added"
	msgUpdated      = "Movie updated"
	msgLoaded       = "Movies loaded"
	msgLoadFailed   = "Failed to load movies"
	msgConfirm      = "Review the changes and resubmit with confirm=true"
	msgNotFound     = "Resource not found"
	msgUnauthorized = "Missing or invalid authentication information"
)

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type movieListResponse struct {
	Items   []domain.Movie `json:"items"`
	Message string         `json:"message,omitempty"`
}

type movieResponse struct {
	Message string       `json:"message,omitempty"`
	Changed *bool        `json:"changed,omitempty"`
	Movie   domain.Movie `json:"movie"`
}

type unchangedResponse struct {
	Changed bool `json:"changed"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: s.store.Snapshot()})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	movie, ok := s.store.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", msgNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, movieResponse{Movie: movie})
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var candidate domain.Movie
	if err := decodeJSONBody(w, r, &candidate); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := candidate.Validate(); err != nil {
		s.respondValidationError(w, err)
		return
	}
	candidate.PrimaryTitle = strings.TrimSpace(candidate.PrimaryTitle)

	created := s.store.Add(r.Context(), candidate)

	w.Header().Set("Location", "/movies/"+url.PathEscape(created.ID))
	s.respondJSON(w, http.StatusCreated, movieResponse{Message: msgAdded, Movie: created})
}

// handleUpdateMovie is two-phase: an edit that changes anything must be
// resubmitted with ?confirm=true after the caller has seen the diff.
func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	confirmed, err := parseConfirm(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var proposed domain.Movie
	if err := decodeJSONBody(w, r, &proposed); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if proposed.ID != "" && proposed.ID != id {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id in body does not match path")
		return
	}
	proposed.ID = id
	if err := proposed.Validate(); err != nil {
		s.respondValidationError(w, err)
		return
	}
	proposed.PrimaryTitle = strings.TrimSpace(proposed.PrimaryTitle)

	current, ok := s.store.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", msgNotFound)
		return
	}

	changes := domain.Diff(current, proposed)
	if len(changes) == 0 {
		s.respondJSON(w, http.StatusOK, unchangedResponse{Changed: false})
		return
	}
	if !confirmed {
		s.respondJSON(w, http.StatusConflict, errorResponse{
			Code:    "CONFIRMATION_REQUIRED",
			Message: msgConfirm,
			Details: changes,
		})
		return
	}

	// The record may have been deleted between Get and Update.
	if !s.store.Update(r.Context(), proposed) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", msgNotFound)
		return
	}
	changed := true
	s.respondJSON(w, http.StatusOK, movieResponse{Message: msgUpdated, Changed: &changed, Movie: proposed})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	movie, ok := s.store.Get(id)
	if !ok || !s.store.Delete(r.Context(), id) {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", msgNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, deleteResponse{
		ID:      id,
		Message: fmt.Sprintf(`"%s" deleted`, movie.PrimaryTitle),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RefreshFromRemote(r.Context()); err != nil {
		s.logger.Printf("refresh movies error: %v", err)
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", msgLoadFailed)
		return
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: s.store.Snapshot(), Message: msgLoaded})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.verifyBearer(r.Header.Get("Authorization")) {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", msgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verifyBearer accepts everything when no token is configured.
func (s *Server) verifyBearer(header string) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("request body must contain a single JSON object")

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondValidationError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Please correct the highlighted fields",
			Details: verr.Fields,
		})
		return
	}
	s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, domain.ErrInvalidDate):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "releaseDate must follow YYYY-MM-DD format")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body exceeds 1 MiB")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func decodeIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return "", fmt.Errorf("missing id parameter")
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid id parameter")
	}
	return id, nil
}

func parseConfirm(query url.Values) (bool, error) {
	raw := strings.TrimSpace(query.Get("confirm"))
	if raw == "" {
		return false, nil
	}
	confirmed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid confirm value")
	}
	return confirmed, nil
}
