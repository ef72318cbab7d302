package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/explorer"
	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/rca"
	"github.com/detective/core/internal/tree"
)

// maxBodyBytes bounds request bodies, hierarchy documents included.
const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeFile sends an export as an attachment.
func writeFile(w http.ResponseWriter, f *export.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.Header().Set("X-Export-Id", f.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		loadErr  *tree.LoadError
		fetchErr *datasource.FetchError
		emptyErr *export.EmptyResultError
	)
	switch {
	case errors.As(err, &loadErr):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, explorer.ErrWrongMode), errors.Is(err, explorer.ErrNotLoaded),
		errors.Is(err, explorer.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, explorer.ErrClosed):
		return http.StatusServiceUnavailable
	case datasource.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &emptyErr), errors.Is(err, rca.ErrEmptyResults):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrUnsupportedFormat), errors.Is(err, rca.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
