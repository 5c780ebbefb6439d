package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"ttemp-link/internal/geo"
	"ttemp-link/internal/repository"
	"ttemp-link/internal/service"
	"ttemp-link/internal/validation"
)

const maxRequestBody = 1 << 20

// ErrorResponse is the JSON error body of the admin API.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	writeJSON(w, log, ErrorResponse{Error: message}, statusCode)
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errBadJSON
	}
	return validation.Struct(dst)
}

var errBadJSON = errors.New("invalid request format")

// writeServiceError maps domain and service errors to responses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		verr       *service.ValidationError
		fields     validation.FieldErrors
		refreshErr *geo.RefreshError
	)

	switch {
	case errors.Is(err, errBadJSON):
		writeError(w, log, "Invalid request format", http.StatusBadRequest)
	case errors.As(err, &fields):
		writeJSON(w, log, ErrorResponse{Error: "Validation failed", Fields: fields}, http.StatusBadRequest)
	case errors.As(err, &verr):
		writeJSON(w, log, ErrorResponse{Error: "Validation failed", Fields: verr.Fields}, http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrLinkNotFound):
		writeError(w, log, "Link not found", http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, log, "You do not have access to this link", http.StatusForbidden)
	case errors.As(err, &refreshErr):
		writeError(w, log, refreshErr.Message, refreshErr.Status)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, log, "Internal server error", http.StatusInternalServerError)
	}
}
