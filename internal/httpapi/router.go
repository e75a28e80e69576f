package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vk/paramfn/internal/ctxlog"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/registry"
)

// Registry is the part of *registry.Registry the API serves.
type Registry interface {
	Create(ctx context.Context, def *model.Definition) (*model.Definition, error)
	Get(ctx context.Context, name string) (*model.Definition, error)
	Inspect(ctx context.Context, name string) (*registry.Inspection, error)
	List(ctx context.Context) []*model.Definition
	Update(ctx context.Context, name string, patch model.Patch) (*model.Definition, error)
	Delete(ctx context.Context, name string) error
	Compute(ctx context.Context, name string, xs []float64, overrides map[string]float64) ([]float64, error)
}

// ServiceName is reported by the banner route.
const ServiceName = "Parametric Function Server"

type server struct {
	reg Registry
}

// NewHandler returns the HTTP handler serving reg. Every request carries a
// child of logger, tagged with the request id, in its context.
func NewHandler(reg Registry, logger *slog.Logger) http.Handler {
	s := &server{reg: reg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogger(logger))
	r.Use(collect)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "Method Not Allowed"})
	})

	r.Get("/", s.banner)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metricsHandler())

	r.Route("/functions", func(r chi.Router) {
		r.Get("/", s.listFunctions)
		r.Post("/", s.createFunction)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getFunction)
			r.Put("/", s.updateFunction)
			r.Delete("/", s.deleteFunction)
			r.Post("/compute", s.computeFunction)
			r.Get("/data", s.functionData)
		})
	})

	return r
}

func withLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.With("request_id", middleware.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path)
			l.Debug("Request received.", "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r.WithContext(ctxlog.WithLogger(r.Context(), l)))
		})
	}
}
