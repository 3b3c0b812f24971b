package service

import (
	"errors"
	"net/http"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/vector"
)

// ErrInvalidRequest marks malformed or incomplete requests.
var ErrInvalidRequest = errors.New("invalid request")

// StatusCode maps an operation error to the HTTP status reported to callers.
// The NATS transport uses the same codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, vector.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, embedding.ErrEmbedding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vector.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
