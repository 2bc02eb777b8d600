package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/scheduler"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ScheduleHandler handles scan schedule create, list, get and delete.
// Schedules are immutable; an update is a delete followed by a create.
type ScheduleHandler struct {
	Store *scheduler.Store
}

// createScheduleInput is a local time of day plus the caller's offset in
// minutes (local + offset = UTC), as reported by a browser's getTimezoneOffset.
type createScheduleInput struct {
	Name          string `json:"name" validate:"max=255"`
	Hour          *int   `json:"hour" validate:"required,min=0,max=23"`
	Minute        *int   `json:"minute" validate:"required,min=0,max=59"`
	OffsetMinutes int    `json:"offset_minutes" validate:"gt=-1440,lt=1440"`
}

// ListSchedules returns all schedules in creation order.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, r, err, "schedule not found")
		return
	}
	if list == nil {
		list = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

// GetSchedule returns one schedule by id.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CreateSchedule creates a daily schedule. Body: {"hour": 9, "minute": 0, "offset_minutes": 300, "name": "..."}.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input createScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields := make(map[string]string, len(verrs))
		msg := "validation failed"
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
			if fe.Field() == "hour" || fe.Field() == "minute" {
				msg = "invalid time of day"
			}
		}
		JSONValidationError(w, msg, fields, http.StatusBadRequest)
		return
	}

	s, err := h.Store.CreateLocal(r.Context(), strings.TrimSpace(input.Name), *input.Hour, *input.Minute, input.OffsetMinutes)
	if err != nil {
		writeError(w, r, err, "schedule not found")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// DeleteSchedule deletes a schedule. Its past runs are kept.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "schedule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "lt":
		return "must be < " + fe.Param()
	}
	return "invalid"
}
