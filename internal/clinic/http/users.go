package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
)

// HandleListUsers handles GET /v1/users.
func HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := sessionFrom(r.Context()).ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponses(users))
}

// HandleCreateUser handles POST /v1/users.
func HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	u, err := sessionFrom(r.Context()).CreateUser(r.Context(), service.NewUser{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		Role:        req.Role,
		PatientName: req.PatientName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleUpdateUser handles PATCH /v1/users/{username}.
func HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	u, err := sessionFrom(r.Context()).UpdateUser(r.Context(), r.PathValue("username"), service.UserUpdate{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Active:      req.Active,
		PatientName: req.PatientName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleDeleteUser handles DELETE /v1/users/{username}.
func HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).DeleteUser(r.Context(), r.PathValue("username")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeRole handles PUT /v1/users/{username}/role.
func HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	u, err := sessionFrom(r.Context()).ChangeRole(r.Context(), r.PathValue("username"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}
