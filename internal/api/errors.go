package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vnmchuo/tenant-reports/internal/report"
	"github.com/vnmchuo/tenant-reports/internal/source"
)

// statusFor maps an engine error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, report.ErrInvalidWindow), errors.Is(err, report.ErrInvalidTenant):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, source.ErrSourceUnavailable),
		errors.Is(err, source.ErrSourceTimeout),
		errors.Is(err, source.ErrSourceTransient):
		return http.StatusServiceUnavailable, "metrics source unavailable, retry later"
	case errors.Is(err, source.ErrSourceInvalidRequest):
		return http.StatusBadGateway, "metrics source rejected the request"
	case errors.Is(err, source.ErrSourceInvalidResponse):
		return http.StatusBadGateway, "metrics source returned an invalid response"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func retryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
