package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"video-transcript-go/internal/jobs"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// videoExts are the upload types accepted for conversion.
var videoExts = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true}

type createJobRequest struct {
	VideoPath string `json:"video_path" validate:"required"`
}

type JobHandler struct {
	svc  JobService
	opts Options
	log  *logger.Logger
}

func NewJobHandler(svc JobService, opts Options, log *logger.Logger) *JobHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 1 << 30
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &JobHandler{svc: svc, opts: opts, log: log}
}

// CreateJob accepts a multipart upload in the "video" field or a JSON body
// naming a video already on the server.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var src jobs.Source
	var err error
	if mediaType == "multipart/form-data" {
		src, err = h.receiveUpload(w, r)
	} else {
		src, err = decodeVideoPath(r)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.svc.Submit(src)
	if err != nil {
		if src.Cleanup != nil {
			_ = src.Cleanup()
		}
		jsonError(w, "failed to start job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	entry := h.log.WithJob(snap.ID).WithField("video", snap.VideoPath)
	if sub := subject(r); sub != "" {
		entry = entry.WithField("subject", sub)
	}
	entry.Info("job submitted")
	jsonResponse(w, snap, http.StatusAccepted)
}

func (h *JobHandler) receiveUpload(w http.ResponseWriter, r *http.Request) (jobs.Source, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return jobs.Source{}, err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		return jobs.Source{}, fmt.Errorf("missing video file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !videoExts[ext] {
		return jobs.Source{}, fmt.Errorf("unsupported video type %q", ext)
	}

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return jobs.Source{}, err
	}
	dst, err := os.CreateTemp(h.opts.UploadDir, "upload-*"+ext)
	if err != nil {
		return jobs.Source{}, err
	}
	cleanup := func() error { return os.Remove(dst.Name()) }

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		_ = cleanup()
		return jobs.Source{}, err
	}
	if err := dst.Close(); err != nil {
		_ = cleanup()
		return jobs.Source{}, err
	}
	return jobs.Source{VideoPath: dst.Name(), Cleanup: cleanup}, nil
}

func decodeVideoPath(r *http.Request) (jobs.Source, error) {
	var req createJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return jobs.Source{}, fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return jobs.Source{}, errors.New("video_path is required")
	}
	info, err := os.Stat(req.VideoPath)
	if err != nil {
		return jobs.Source{}, fmt.Errorf("video not readable: %w", err)
	}
	if info.IsDir() {
		return jobs.Source{}, fmt.Errorf("video path %s is a directory", req.VideoPath)
	}
	return jobs.Source{VideoPath: req.VideoPath}, nil
}

// ListJobs returns job history, newest first.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.svc.List(limit)
	if err != nil {
		jsonError(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []types.JobSnapshot{}
	}
	jsonResponse(w, list, http.StatusOK)
}

// GetJob returns the job's progress snapshot.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	jsonResponse(w, snap, http.StatusOK)
}

func (h *JobHandler) GetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.svc.Results(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	if chunks == nil {
		chunks = []types.ChunkResult{}
	}
	jsonResponse(w, chunks, http.StatusOK)
}

// ResetJob cancels an in-flight job and forgets it.
// ResetJob cancels a job. With ?purge=true its history is deleted too.
func (h *JobHandler) ResetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge {
		if err := h.svc.Purge(r.Context(), id); err != nil {
			writeJobError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	snap, err := h.svc.Reset(r.Context(), id)
	if err != nil {
		writeJobError(w, err)
		return
	}
	jsonResponse(w, snap, http.StatusOK)
}

func (h *JobHandler) RestartJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Restart(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	jsonResponse(w, snap, http.StatusAccepted)
}

func (h *JobHandler) DownloadTranscript(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, func(a types.Artifacts) string { return a.TranscriptPath }, "text/plain; charset=utf-8")
}

func (h *JobHandler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, func(a types.Artifacts) string { return a.AudioPath }, "audio/wav")
}

func (h *JobHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, func(a types.Artifacts) string { return a.ReportPath },
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (h *JobHandler) serveArtifact(w http.ResponseWriter, r *http.Request, pick func(types.Artifacts) string, contentType string) {
	snap, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	if snap.State != types.StateCompleted {
		jsonError(w, "job is "+string(snap.State)+", not completed", http.StatusConflict)
		return
	}
	path := pick(snap.Artifacts)
	if path == "" {
		jsonError(w, "artifact not produced", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		jsonError(w, "artifact missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "artifact unreadable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(path)}))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrJobRunning):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, jobs.ErrSourceGone):
		jsonError(w, err.Error(), http.StatusGone)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}
