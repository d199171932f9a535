package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
	"github.com/hackgods/rehab-care-coordination/internal/clinical"
)

const (
	dateLayout   = "2006-01-02"
	userIDHeader = "X-User-ID"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("%s must be a valid UUID", name)
	}
	return id, nil
}

func requestingUser(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		return uuid.Nil, apperr.Validation("%s header is required", userIDHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("%s header must be a valid UUID", userIDHeader)
	}
	return id, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTime(name, raw string, upper bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be RFC 3339 or YYYY-MM-DD, got %q", name, raw)
	}
	if upper {
		return d.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d, nil
}

// windowQuery reads the start and end query parameters. Missing bounds are
// open.
func windowQuery(r *http.Request) (clinical.Window, error) {
	q := r.URL.Query()
	start, err := parseTime("start", q.Get("start"), false)
	if err != nil {
		return clinical.Window{}, err
	}
	end, err := parseTime("end", q.Get("end"), true)
	if err != nil {
		return clinical.Window{}, err
	}
	return clinical.NewWindow(start, end)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
