// Package httputil holds the JSON response and request helpers shared by
// HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "biovault/pkg/domain-errors"
)

// MaxBodyBytes bounds request bodies. Base64 inflates a maximum size sample
// by a third, plus room for metadata.
const MaxBodyBytes = 8 << 20

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its status and body. Internal errors
// never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// Validatable requests check and normalize themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes a bounded JSON body into T and validates it. On
// failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			WriteError(w, dErrors.New(dErrors.CodeValidation, "request body too large"))
		case errors.Is(err, io.EOF):
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
		default:
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		}
		logger.WarnContext(ctx, "failed to decode request", "error", err, "request_id", requestID)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request", "error", err, "request_id", requestID)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
