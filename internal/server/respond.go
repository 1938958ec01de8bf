package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	derrors "github.com/matzehuels/downline/pkg/errors"
)

// envelope is the body of every JSON API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ctxKey int

const ownerKey ctxKey = iota

// withOwner stores the owner id in ctx.
func withOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// ownerFrom returns the owner id stored by [Server.requireOwner].
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

// requireOwner rejects requests without an owner header.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(s.cfg.OwnerHeader))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{Error: "Unauthorized. Please sign in."})
			return
		}
		next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), owner)))
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return derrors.Wrap(derrors.ErrCodeInvalidInput, err, "invalid request body: %v", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeJSON encodes body before writing the header, so a body that cannot
// be encoded becomes a 500 instead of an empty response.
func writeJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		buf.Reset()
		buf.WriteString(`{"success":false,"error":"Failed to encode response"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeError answers with the status for err's code. Internal errors are
// logged and reported with fallback instead of their cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	msg := derrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(fallback, "path", r.URL.Path, "owner", ownerFrom(r.Context()), "err", err)
		msg = fallback
	}
	writeJSON(w, status, envelope{Error: msg})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case derrors.IsInvalid(err):
		return http.StatusBadRequest
	case derrors.IsNotFound(err):
		return http.StatusNotFound
	}
	switch derrors.GetCode(err) {
	case derrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case derrors.ErrCodeForbidden:
		return http.StatusForbidden
	case derrors.ErrCodeCapacityExceeded, derrors.ErrCodeDuplicateID:
		return http.StatusConflict
	case derrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
