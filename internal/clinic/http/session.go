package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
	"github.com/aussiebroadwan/clinic/pkg/idx"
	"github.com/aussiebroadwan/clinic/pkg/jwtx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// SessionHandler logs users in and issues signed session tokens.
type SessionHandler struct {
	Core   *service.Core
	Signer jwtx.Signer
	Issuer string
	TTL    time.Duration
}

// HandleLogin handles POST /v1/session.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	u, err := h.Core.Credentials.Authenticate(ctx, req.Username, req.Password, req.OTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	amr := []string{"pwd"}
	if u.MFAEnabled() {
		amr = append(amr, "otp")
	}
	claims := jwtx.NewSessionClaims(
		u.ID, idx.New().String(),
		u.Username, u.Role.String(),
		amr, h.TTL, h.Issuer, time.Now(),
	)
	token, err := h.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign session token", "user_id", u.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.TTL.Seconds()),
		Principal:   service.PrincipalOf(u),
	})
}

// HandleRegister handles POST /v1/register. The new account still has to log
// in through /v1/session.
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	u, err := h.Core.Register(r.Context(), service.Registration{
		Username:     req.Username,
		Password:     req.Password,
		Confirm:      req.Confirm,
		Email:        req.Email,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleProfile handles GET /v1/me.
func HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := sessionFrom(r.Context()).Profile(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ProfileResponse{
		User:    toUserResponse(profile.User),
		Patient: profile.Patient,
	})
}
