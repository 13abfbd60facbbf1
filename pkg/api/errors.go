package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errBadRequest marks request bodies that fail to decode or validate.
var errBadRequest = errors.New("bad request")

type statusMapping struct {
	target error
	status int
	code   string
}

// statusMappings is checked in order; the first match wins.
var statusMappings = []statusMapping{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{qerrors.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{qerrors.ErrSessionClosed, http.StatusGone, "session_closed"},
	{qerrors.ErrUnsupportedAlgorithm, http.StatusBadRequest, "unsupported_algorithm"},
	{qerrors.ErrInvalidPublicKey, http.StatusBadRequest, "invalid_public_key"},
	{qerrors.ErrInvalidCiphertext, http.StatusBadRequest, "invalid_ciphertext"},
	{qerrors.ErrInvalidKeySize, http.StatusBadRequest, "invalid_key"},
	{qerrors.ErrMalformedInput, http.StatusBadRequest, "malformed_input"},
	{qerrors.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{qerrors.ErrAuthenticationFailed, http.StatusUnprocessableEntity, "authentication_failed"},
	{qerrors.ErrDecapsulationFailed, http.StatusUnprocessableEntity, "decapsulation_failed"},
	{qerrors.ErrKeyGenerationTimeout, http.StatusServiceUnavailable, "key_generation_timeout"},
	{ErrTooManySessions, http.StatusServiceUnavailable, "too_many_sessions"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests"},
	{qerrors.ErrNonceExhausted, http.StatusConflict, "nonce_exhausted"},
	{context.Canceled, 499, "request_cancelled"},
}

// classify maps err to an HTTP status and a stable error code. Unknown
// errors are internal.
func classify(err error) (int, string) {
	for _, m := range statusMappings {
		if qerrors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", metrics.Fields{"path": r.URL.Path, "error": err.Error()})
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
