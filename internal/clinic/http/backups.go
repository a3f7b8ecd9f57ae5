package http

import (
	"net/http"

	"github.com/aussiebroadwan/clinic/pkg/httpx"
)

// HandleBackup handles POST /v1/backups.
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := sessionFrom(r.Context()).Backup(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}
