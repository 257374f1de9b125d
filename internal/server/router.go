package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/optisaas25/fiscal-engine/internal/handlers"
	"github.com/optisaas25/fiscal-engine/internal/httpx"
	"github.com/optisaas25/fiscal-engine/internal/services"
	"github.com/optisaas25/fiscal-engine/internal/store"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, st *store.DocumentStore, engine *services.LifecycleEngine, rec *services.PaymentReconciler) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	dh := handlers.NewDocumentHandler(st, engine)
	ph := handlers.NewPaymentHandler(rec)
	ch := handlers.NewClientHandler(engine)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", dh.List)
			r.Post("/", dh.Create)
			r.Get("/{id}", dh.Get)
			r.Patch("/{id}/status", dh.UpdateStatus)
			r.Delete("/{id}", dh.Delete)
			r.Post("/{id}/payments", ph.Apply)
		})
		r.Route("/payments", func(r chi.Router) {
			r.Patch("/{id}", ph.Update)
			r.Delete("/{id}", ph.Remove)
		})
		r.Delete("/clients/{id}", ch.Delete)
		r.Post("/maintenance/sweep-drafts", dh.SweepDrafts)
	})

	return r
}

// requestID tags every request with a generated id, exposed on the response
// and in the request logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		r.Header.Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", r.Header.Get("X-Request-Id")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
