package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/todolist/internal/models"
	"github.com/atinyakov/todolist/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var defaultDetails = map[error]string{
	models.ErrInvalidCredentials: "Invalid credentials",
	models.ErrUnauthorized:       "Unauthorized",
	models.ErrForbidden:          "Forbidden",
	models.ErrNotFound:           "Not found",
	models.ErrConflict:           "User already exists",
}

var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrInvalidCredentials, http.StatusUnauthorized},
	{models.ErrUnauthorized, http.StatusUnauthorized},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrConflict, http.StatusConflict},
}

// writeJSON encodes v before the header is sent, so an unencodable value
// becomes a 500 instead of a success status with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"detail":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeServiceError maps err to its status code and a client-facing detail.
// custom overrides the detail for individual sentinels. Unknown errors are
// logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, custom map[error]string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Reason)
		return
	}

	for _, es := range errorStatus {
		if !errors.Is(err, es.err) {
			continue
		}
		detail, ok := custom[es.err]
		if !ok {
			detail = defaultDetails[es.err]
		}
		writeError(w, es.status, detail)
		return
	}

	log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// decodeJSON strictly decodes a single JSON object from the request body
// into dst. Numbers are kept as json.Number for the validation layer.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &validation.Error{Reason: "Request body is required"}
		case errors.As(err, &maxErr):
			return &validation.Error{Reason: "Request body too large"}
		default:
			return &validation.Error{Reason: fmt.Sprintf("Invalid request body: %v", err)}
		}
	}
	if dec.More() {
		return &validation.Error{Reason: "Invalid request body: unexpected data after JSON object"}
	}
	return nil
}
