package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/metrics"
	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
	"github.com/aussiebroadwan/clinic/pkg/jwtx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	signer       jwtx.Signer
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	Core  *service.Core

	SessionTTL time.Duration
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	signer jwtx.Signer,
	issuer, buildVersion string,
	st store.Store,
	core *service.Core,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		signer:       signer,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		Core:         core,
		SessionTTL:   jwtx.DefaultSessionTTL,
	}

	// The metrics middleware must stay innermost so it sees the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		metrics.HTTPMetricsMiddleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerPatients()
	r.registerCategories()
	r.registerAppointments()
	r.registerUsers()
	r.registerMFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured requires a valid session token and an active account.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		PrincipalMiddleware(r.Core),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		Core:   r.Core,
		Signer: r.signer,
		Issuer: r.issuer,
		TTL:    r.SessionTTL,
	}

	// POST /session - strict rate limit by IP (password guessing)
	r.Mux.Handle("POST /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /v1/me", r.secured(HandleProfile, httpx.LenientLimit))
}

func (r *Router) registerPatients() {
	r.Mux.Handle("GET /v1/patients", r.secured(HandleListPatients, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/patients", r.secured(HandleCreatePatient, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/patients/{name}", r.secured(HandleGetPatient, httpx.LenientLimit))
	r.Mux.Handle("PUT /v1/patients/{name}", r.secured(HandleUpdatePatient, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/patients/{name}", r.secured(HandleDeletePatient, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/patients/{name}/appointments", r.secured(HandlePatientAppointments, httpx.LenientLimit))
}

func (r *Router) registerCategories() {
	r.Mux.Handle("GET /v1/categories", r.secured(HandleListCategories, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/categories", r.secured(HandleCreateCategory, httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/categories/{name}", r.secured(HandleUpdateCategory, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/categories/{name}", r.secured(HandleDeleteCategory, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/statistics", r.secured(HandleStatistics, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/overview", r.secured(HandleOverview, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/backups", r.secured(HandleBackup, httpx.StrictLimit))
}

func (r *Router) registerAppointments() {
	r.Mux.Handle("GET /v1/appointments", r.secured(HandleListAppointments, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/appointments", r.secured(HandleCreateAppointment, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/appointments/{id}/cancel", r.secured(HandleCancelAppointment, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/slots", r.secured(HandleSlots, httpx.LenientLimit))
}

func (r *Router) registerUsers() {
	r.Mux.Handle("GET /v1/users", r.secured(HandleListUsers, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/users", r.secured(HandleCreateUser, httpx.ModerateLimit))
	r.Mux.Handle("PATCH /v1/users/{username}", r.secured(HandleUpdateUser, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/users/{username}", r.secured(HandleDeleteUser, httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/users/{username}/role", r.secured(HandleChangeRole, httpx.ModerateLimit))
}

func (r *Router) registerMFA() {
	r.Mux.Handle("POST /v1/mfa/totp/enroll", r.secured(HandleEnrollTOTP, httpx.ModerateLimit))
	// verify and disable are strict: they accept guesses at a 6 digit code
	r.Mux.Handle("POST /v1/mfa/totp/verify", r.secured(HandleConfirmTOTP, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/mfa/totp", r.secured(HandleDisableTOTP, httpx.StrictLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(promhttp.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
