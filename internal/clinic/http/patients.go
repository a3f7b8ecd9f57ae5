package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
)

// HandleListPatients handles GET /v1/patients. With ?q= it searches name,
// email, phone and category.
func HandleListPatients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := sessionFrom(ctx)

	q := r.URL.Query()
	if q.Has("q") {
		found, err := s.SearchContacts(ctx, q.Get("q"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, found)
		return
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, all)
}

// HandleCreatePatient handles POST /v1/patients.
func HandleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var in service.PatientInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := sessionFrom(r.Context()).AddContact(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// HandleGetPatient handles GET /v1/patients/{name}.
func HandleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := sessionFrom(r.Context()).GetContact(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdatePatient handles PUT /v1/patients/{name}. The body replaces
// every editable field, including the name.
func HandleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var in service.PatientInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := sessionFrom(r.Context()).UpdateContact(r.Context(), r.PathValue("name"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandleDeletePatient handles DELETE /v1/patients/{name}.
func HandleDeletePatient(w http.ResponseWriter, r *http.Request) {
	n, err := sessionFrom(r.Context()).DeleteContact(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, DeletePatientResponse{AppointmentsCancelled: n})
}

// HandlePatientAppointments handles GET /v1/patients/{name}/appointments.
func HandlePatientAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := sessionFrom(r.Context()).GetPatientAppointments(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}
