package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/validation"
)

const defaultPageSize = 50

func (h *Handlers) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alerts, total, err := h.alerts.ListAlerts(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list alerts")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.AlertPage{
		Alerts:   alerts,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func parseAlertFilter(q url.Values) (models.AlertFilter, error) {
	f := models.AlertFilter{
		CameraID:  q.Get("camera_id"),
		AlertType: q.Get("alert_type"),
		Page:      1,
		PageSize:  defaultPageSize,
	}

	var err error
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid page_size %q", v)
		}
	}
	if v := q.Get("zone_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid zone_id %q", v)
		}
		f.ZoneID = &id
	}
	if f.Start, err = parseTimeParam(q, "start_date"); err != nil {
		return f, err
	}
	if f.End, err = parseTimeParam(q, "end_date"); err != nil {
		return f, err
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, fmt.Errorf("end_date is before start_date")
	}

	if err := validation.Struct(f); err != nil {
		return f, err
	}
	return f, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTimeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s %q", name, v)
}
