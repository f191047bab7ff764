// Package api implements the quiz service's REST backend: accounts with
// bearer token sessions, and per-account arithmetic quizzes.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/mathquiz/internal/util"
	"github.com/jmcleod/mathquiz/quiz"
	"github.com/jmcleod/mathquiz/storage"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
	resetCodeTTL           = time.Hour
	resetCodeLength        = 8
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo           storage.Repository
	tokens         TokenStore
	loginLimiter   *backoffLimiter
	ipLimiter      *backoffLimiter
	requestLimiter *backoffLimiter
	trustedProxies []netip.Prefix
	audit          *auditLogger
	logger         *slog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
	kdfParams  util.Argon2idParams
	now        func() time.Time
	intn       quiz.Intn
	alertFn    AlertFunc

	// accountsMu serialises writes that must keep the email index unique.
	accountsMu sync.Mutex
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events and errors.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithTokenStore sets where issued tokens are kept. The default is an
// in-memory store.
func WithTokenStore(store TokenStore) Option {
	return func(a *API) {
		a.tokens = store
	}
}

// WithTokenTTL sets the lifetimes of access and refresh tokens.
func WithTokenTTL(access, refresh time.Duration) Option {
	return func(a *API) {
		a.accessTTL = access
		a.refreshTTL = refresh
	}
}

// WithArgon2idParams sets the password hashing cost for new hashes.
func WithArgon2idParams(p util.Argon2idParams) Option {
	return func(a *API) {
		a.kdfParams = p
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// WithQuestionSource sets the random source used to generate questions.
func WithQuestionSource(intn quiz.Intn) Option {
	return func(a *API) {
		a.intn = intn
	}
}

// WithAlertFunc sets the callback invoked when login failures or reset
// code requests spike across all accounts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers are
// honoured when determining the client IP for rate limiting.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// New creates a new API instance.
func New(repo storage.Repository, opts ...Option) *API {
	a := &API{
		repo:       repo,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		kdfParams:  util.DefaultArgon2idParams(),
		now:        time.Now,
		intn:       util.RandomIntn,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.tokens == nil {
		a.tokens = NewMemoryTokenStore()
	}
	a.audit = newAuditLogger(a.logger, newMetricsCollector(a.alertFn, a.now))
	a.loginLimiter = newBackoffLimiter(loginLimits, a.now)
	a.ipLimiter = newBackoffLimiter(ipLimits, a.now)
	a.requestLimiter = newBackoffLimiter(requestLimits, a.now)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "")
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Route("/account", func(r chi.Router) {
		r.Post("/register", a.Register)
		r.Post("/login", a.Login)
		r.Post("/refresh", a.Refresh)
		r.Post("/forgotPassword", a.ForgotPassword)
		r.Post("/resetPassword", a.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(a.AuthMiddleware)
			r.Post("/logout", a.Logout)
			r.Get("/manage/info", a.AccountInfo)
			r.Post("/manage/info", a.UpdateAccountInfo)
		})
	})

	r.Route("/quiz", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.ListQuizzes)
		r.Post("/", a.CreateQuiz)
		r.Get("/questions/{n}", a.GenerateQuestions)
		r.Get("/{id}", a.GetQuiz)
		r.Patch("/{id}", a.EditQuiz)
		r.Delete("/{id}", a.DeleteQuiz)
	})

	return r
}
