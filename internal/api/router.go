package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"video-transcript-go/internal/jobs"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

// JobService is the job runner behind the HTTP surface.
type JobService interface {
	Submit(src jobs.Source) (types.JobSnapshot, error)
	Get(id string) (types.JobSnapshot, error)
	Results(id string) ([]types.ChunkResult, error)
	List(limit int) ([]types.JobSnapshot, error)
	Reset(ctx context.Context, id string) (types.JobSnapshot, error)
	Restart(id string) (types.JobSnapshot, error)
	Purge(ctx context.Context, id string) error
}

// Options configures the router.
type Options struct {
	CORSOrigins    []string
	JWTSecret      string
	MaxUploadBytes int64
	UploadDir      string
}

func NewRouter(svc JobService, opts Options, log *logger.Logger) *chi.Mux {
	log = log.Component("api")
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))

	h := NewJobHandler(svc, opts, log)

	r.Get("/healthz", health)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.JWTSecret))

		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.ResetJob)
		r.Post("/jobs/{id}/restart", h.RestartJob)
		r.Get("/jobs/{id}/chunks", h.GetChunks)
		r.Get("/jobs/{id}/transcript", h.DownloadTranscript)
		r.Get("/jobs/{id}/audio", h.DownloadAudio)
		r.Get("/jobs/{id}/report", h.DownloadReport)
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}
