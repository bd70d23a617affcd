package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kapu/spotmyartist/internal/geo"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed errors to a status. Upstream failures are reported as
// 502, or 503 while the upstream circuit is open.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)

	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= 500 {
		s.logger.Warn("Request failed", fields...)
	} else {
		s.logger.Debug("Request rejected", fields...)
	}

	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	if errors.Is(err, geo.ErrNotFound) {
		return http.StatusNotFound, errorBody{Error: "location not found", Code: apperrors.CodeNotFound}
	}

	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.StatusCode == http.StatusServiceUnavailable {
			status = http.StatusServiceUnavailable
		}
		return status, errorBody{Error: apiErr.Message, Code: apiErr.Code}
	}

	var appErr interface {
		HTTPStatus() int
	}
	if errors.As(err, &appErr) {
		body := errorBody{Error: err.Error()}
		var ae *apperrors.AppError
		switch e := appErr.(type) {
		case *apperrors.ValidationError:
			ae = e.AppError
		case *apperrors.NotFoundError:
			ae = e.AppError
		case *apperrors.ServiceError:
			ae = e.AppError
		case *apperrors.CacheError:
			ae = e.AppError
		case *apperrors.AppError:
			ae = e
		}
		if ae != nil {
			body = errorBody{Error: ae.Message, Code: ae.Code}
		}
		return appErr.HTTPStatus(), body
	}

	return http.StatusBadGateway, errorBody{Error: "upstream request failed"}
}
