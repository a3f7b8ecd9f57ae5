package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
	"github.com/aussiebroadwan/clinic/pkg/idx"
)

// HandleListAppointments handles GET /v1/appointments. Staff see every
// appointment, patients their own.
func HandleListAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := sessionFrom(r.Context()).GetAppointments(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// HandleCreateAppointment handles POST /v1/appointments.
func HandleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.AppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	a, err := sessionFrom(r.Context()).CreateAppointment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

// HandleCancelAppointment handles POST /v1/appointments/{id}/cancel.
func HandleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, service.ErrNotFound)
		return
	}
	a, err := sessionFrom(r.Context()).CancelAppointment(r.Context(), id.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

// HandleSlots handles GET /v1/slots?date=YYYY-MM-DD.
func HandleSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "date is required")
		return
	}
	slots, err := sessionFrom(r.Context()).AvailableSlots(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slots)
}
