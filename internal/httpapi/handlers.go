package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/obs"
)

// Pinger is satisfied by *sql.DB and by the store wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe: проверка готовности (ping хранилища).
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rp.Store.Ping(ctx)
}

// RateConfig controls the per-IP limiter on /v1/auth/.
type RateConfig struct {
	PerSecond float64
	Burst     int
}

// API: HTTP слой.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	readyProbe ReadyProbe
	version    string
	rate       RateConfig
	maxBody    int64
	timeout    time.Duration
}

// Option configures an API.
type Option func(*API)

// WithRateLimit overrides the auth route limiter.
func WithRateLimit(rc RateConfig) Option {
	return func(a *API) { a.rate = rc }
}

// WithRequestTimeout bounds the context handed to the engine for each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

func New(svc *auth.Service, rp ReadyProbe, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    "dev",
		rate:       RateConfig{PerSecond: 10, Burst: 20},
		maxBody:    1 << 20,
		timeout:    defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	authRoutes := http.NewServeMux()
	authRoutes.HandleFunc("/v1/auth/magic-link/request", a.handleMagicLinkRequest)
	authRoutes.HandleFunc("/v1/auth/magic-link/verify", a.handleMagicLinkVerify)
	authRoutes.HandleFunc("/v1/auth/google", a.handleGoogleLogin)
	authRoutes.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	authRoutes.Handle("/v1/auth/logout", a.withAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/v1/auth/", RateLimit(authRoutes, a.rate.Burst, a.rate.PerSecond))

	admin := RequireRole(auth.RoleAdmin)
	a.mux.Handle("/v1/accounts", a.withAuth(http.HandlerFunc(a.handleAccounts)))
	a.mux.Handle("/v1/accounts/me", a.withAuth(http.HandlerFunc(a.handleCurrentAccount)))
	a.mux.Handle("/v1/accounts/me/members", a.withAuth(admin(http.HandlerFunc(a.handleMembers))))
	a.mux.Handle("/v1/accounts/me/members/", a.withAuth(admin(http.HandlerFunc(a.handleMember))))
	a.mux.Handle("/v1/accounts/me/invites", a.withAuth(admin(http.HandlerFunc(a.handleInvites))))
	a.mux.Handle("/v1/accounts/me/invites/", a.withAuth(admin(http.HandlerFunc(a.handleInviteRevoke))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// Handler возвращает http.Handler для сервера со всей цепочкой middleware.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = Timeout(h, a.timeout)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
