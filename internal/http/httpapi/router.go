package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ipstudio/internal/http/handlers"
	"ipstudio/internal/infra"
	"ipstudio/internal/middleware"
)

// Options carries router settings that do not belong to the handlers.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	// Static serves stored artifacts under /static. Nil disables the mount.
	Static http.Handler
}

func NewRouter(app *handlers.App, opts Options, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", app.CreateTask)
				r.Get("/{id}", app.GetTask)
				r.Post("/{id}/retry", app.RetryTask)
			})
			r.Get("/batches/{id}", app.GetBatch)
			r.Route("/characters", func(r chi.Router) {
				r.Get("/", app.ListCharacters)
				r.Post("/", app.CreateCharacter)
				r.Get("/{id}", app.GetCharacter)
				r.Get("/{id}/tasks", app.ListCharacterTasks)
				r.Post("/{id}/merchandise", app.LaunchMerchandise)
			})
		})
	})

	return r
}
