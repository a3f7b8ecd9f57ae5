package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/pkg/httpx"
)

// HandleEnrollTOTP handles POST /v1/mfa/totp/enroll. The secret is shown
// once; MFA is enforced only after HandleConfirmTOTP.
func HandleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
	enrollment, err := sessionFrom(r.Context()).EnrollTOTP(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

// HandleConfirmTOTP handles POST /v1/mfa/totp/verify.
func HandleConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	var req TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := sessionFrom(r.Context()).ConfirmTOTP(r.Context(), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisableTOTP handles DELETE /v1/mfa/totp. A current code is required.
func HandleDisableTOTP(w http.ResponseWriter, r *http.Request) {
	var req TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := sessionFrom(r.Context()).DisableTOTP(r.Context(), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
