package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// errorMapping translates a service sentinel into an HTTP status and error kind.
type errorMapping struct {
	err    error
	status int
	kind   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrMFARequired, http.StatusUnauthorized, "mfa_required"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},

	{service.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrNoMatchingPatient, http.StatusNotFound, "no_matching_patient"},

	{service.ErrDuplicateIdentity, http.StatusConflict, "duplicate_identity"},
	{service.ErrDuplicatePatient, http.StatusConflict, "duplicate_patient"},
	{service.ErrDuplicateCategory, http.StatusConflict, "duplicate_category"},
	{service.ErrConflictingAppointment, http.StatusConflict, "slot_taken"},
	{service.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{service.ErrAppointmentClosed, http.StatusConflict, "appointment_closed"},
	{service.ErrLastSuperAdmin, http.StatusConflict, "last_super_admin"},
	{service.ErrCategoryInUse, http.StatusConflict, "category_in_use"},
	{service.ErrDefaultCategory, http.StatusConflict, "default_category"},
	{service.ErrMFAAlreadyEnabled, http.StatusConflict, "mfa_already_enabled"},
	{service.ErrMFANotEnrolled, http.StatusConflict, "mfa_not_enrolled"},

	{service.ErrPasswordMismatch, http.StatusBadRequest, "password_mismatch"},
	{service.ErrInvalidTOTPCode, http.StatusBadRequest, "invalid_code"},
	{service.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{service.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{service.ErrInvalidUser, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidPatient, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidCategory, http.StatusBadRequest, "invalid_request"},
	{service.ErrInvalidSchedule, http.StatusBadRequest, "invalid_schedule"},

	{service.ErrBackupUnsupported, http.StatusNotImplemented, "backup_unsupported"},
}

// writeServiceError writes the response for an error returned by a Session
// call. Unknown errors are logged and reported as server_error without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httpx.WriteError(w, m.status, m.kind, err.Error())
			return
		}
	}
	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
}

func writeBadRequest(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
