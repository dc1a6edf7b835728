// Package httpapi serves the library REST API used by the browser UI.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/catalog"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/events"
	"github.com/bookstore/services/library/internal/ledger"
	"github.com/bookstore/services/library/internal/lending"
	"github.com/bookstore/services/library/internal/metrics"
	"github.com/bookstore/services/library/internal/repo"
)

// Pinger reports whether the database answers
type Pinger interface {
	Ping() error
}

// Broker reports whether the event broker connection is up
type Broker interface {
	IsHealthy() bool
}

// Deps wires the handler to the rest of the service. Events, Metrics,
// Gatherer and Broker are optional.
type Deps struct {
	Repo           *repo.Repository
	Ledger         *ledger.Ledger
	Engine         *lending.Engine
	Catalog        *catalog.Catalog
	Events         *events.Dispatcher
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	DB             Pinger
	Broker         Broker
	AllowedOrigins []string
	Log            *zap.Logger
}

// Handler holds the dependencies of the REST handlers
type Handler struct {
	repo    *repo.Repository
	ledger  *ledger.Ledger
	engine  *lending.Engine
	catalog *catalog.Catalog
	events  *events.Dispatcher
	metrics *metrics.Metrics
	db      Pinger
	broker  Broker
	log     *zap.Logger
}

// NewRouter builds the HTTP handler with CORS, request logging and panic recovery
func NewRouter(deps Deps) http.Handler {
	h := &Handler{
		repo:    deps.Repo,
		ledger:  deps.Ledger,
		engine:  deps.Engine,
		catalog: deps.Catalog,
		events:  deps.Events,
		metrics: deps.Metrics,
		db:      deps.DB,
		broker:  deps.Broker,
		log:     deps.Log,
	}

	router := mux.NewRouter()
	router.Use(h.requestMiddleware, h.recoverMiddleware)

	router.HandleFunc("/books", h.listBooks).Methods(http.MethodGet)
	router.HandleFunc("/books", h.createBook).Methods(http.MethodPost)
	router.HandleFunc("/books/{id}", h.getBook).Methods(http.MethodGet)
	router.HandleFunc("/books/{id}", h.deleteBook).Methods(http.MethodDelete)
	router.HandleFunc("/books/{id}/copies", h.adjustCopies).Methods(http.MethodPut)

	router.HandleFunc("/members", h.listMembers).Methods(http.MethodGet)
	router.HandleFunc("/members", h.createMember).Methods(http.MethodPost)
	router.HandleFunc("/members/{id}", h.getMember).Methods(http.MethodGet)
	router.HandleFunc("/members/{id}", h.updateMember).Methods(http.MethodPatch)

	router.HandleFunc("/loans", h.listLoans).Methods(http.MethodGet)
	router.HandleFunc("/loans/active", h.activeLoans).Methods(http.MethodGet)
	router.HandleFunc("/loans/borrow", h.borrow).Methods(http.MethodPost)
	router.HandleFunc("/loans/return", h.returnLoan).Methods(http.MethodPost)

	router.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	router.HandleFunc("/admin/consistency", h.consistency).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errs.NotFound("no route for %s %s", r.Method, r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			Error:   "method_not_allowed",
			Message: r.Method + " is not allowed on " + r.URL.Path,
		})
	})

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{totalCountHeader, requestIDHeader},
	})

	return c.Handler(router)
}
