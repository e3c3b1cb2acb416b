package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"video-transcript-go/internal/jobs"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

type fakeService struct {
	mu        sync.Mutex
	jobs      map[string]types.JobSnapshot
	submitted []jobs.Source
	resetIDs  []string
	purgedIDs []string
}

func (f *fakeService) sources() []jobs.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jobs.Source(nil), f.submitted...)
}

func newFakeService() *fakeService {
	return &fakeService{jobs: map[string]types.JobSnapshot{}}
}

func (f *fakeService) Submit(src jobs.Source) (types.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, src)
	snap := types.JobSnapshot{ID: "job-1", VideoPath: src.VideoPath, State: types.StateCreated, CreatedAt: time.Now()}
	f.jobs[snap.ID] = snap
	return snap, nil
}

func (f *fakeService) Get(id string) (types.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeService) get(id string) (types.JobSnapshot, error) {
	snap, ok := f.jobs[id]
	if !ok {
		return types.JobSnapshot{}, jobs.ErrJobNotFound
	}
	return snap, nil
}

func (f *fakeService) Results(id string) ([]types.ChunkResult, error) {
	if _, err := f.Get(id); err != nil {
		return nil, err
	}
	return []types.ChunkResult{{Index: 0, OK: true, Text: "hi", Attempts: 1}}, nil
}

func (f *fakeService) List(limit int) ([]types.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.JobSnapshot
	for _, s := range f.jobs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeService) Reset(ctx context.Context, id string) (types.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, err := f.get(id)
	if err != nil {
		return snap, err
	}
	f.resetIDs = append(f.resetIDs, id)
	snap.State = types.StateCancelled
	return snap, nil
}

func (f *fakeService) Purge(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.get(id); err != nil {
		return err
	}
	delete(f.jobs, id)
	f.purgedIDs = append(f.purgedIDs, id)
	return nil
}

func (f *fakeService) Restart(id string) (types.JobSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, err := f.get(id)
	if err != nil {
		return snap, err
	}
	if !snap.State.Terminal() {
		return snap, jobs.ErrJobRunning
	}
	return snap, nil
}

func newServer(t *testing.T, svc JobService, opts Options) *httptest.Server {
	t.Helper()
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	srv := httptest.NewServer(NewRouter(svc, opts, logger.Discard()))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, newFakeService(), Options{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("status = %d, request id = %q", resp.StatusCode, resp.Header.Get("X-Request-ID"))
	}
	resp.Body.Close()
}

func TestCreateJobFromPath(t *testing.T) {
	svc := newFakeService()
	srv := newServer(t, svc, Options{})

	video := filepath.Join(t.TempDir(), "talk.mp4")
	if err := os.WriteFile(video, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]string{"video_path": video})
	resp, err := http.Post(srv.URL+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap types.JobSnapshot
	decode(t, resp, &snap)
	if got := svc.sources(); snap.VideoPath != video || len(got) != 1 || got[0].Cleanup != nil {
		t.Fatalf("snap = %+v, submitted = %+v", snap, got)
	}
}

func TestCreateJobRejectsBadInput(t *testing.T) {
	srv := newServer(t, newFakeService(), Options{})

	tests := []struct {
		name string
		body string
	}{
		{"empty path", `{"video_path": ""}`},
		{"missing file", `{"video_path": "/does/not/exist.mp4"}`},
		{"not json", `video`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/jobs", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("video", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestCreateJobFromUpload(t *testing.T) {
	svc := newFakeService()
	uploads := t.TempDir()
	srv := newServer(t, svc, Options{UploadDir: uploads})

	body, ctype := multipartBody(t, "clip.MOV", "video-bytes")
	resp, err := http.Post(srv.URL+"/api/jobs", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	src := svc.sources()[0]
	if filepath.Dir(src.VideoPath) != uploads || filepath.Ext(src.VideoPath) != ".mov" {
		t.Fatalf("upload stored at %s", src.VideoPath)
	}
	got, err := os.ReadFile(src.VideoPath)
	if err != nil || string(got) != "video-bytes" {
		t.Fatalf("upload content = %q, %v", got, err)
	}
	if err := src.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(src.VideoPath); !os.IsNotExist(err) {
		t.Fatalf("upload not removed: %v", err)
	}
}

func TestCreateJobRejectsUnsupportedUpload(t *testing.T) {
	svc := newFakeService()
	srv := newServer(t, svc, Options{})

	body, ctype := multipartBody(t, "notes.txt", "text")
	resp, err := http.Post(srv.URL+"/api/jobs", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if n := len(svc.sources()); resp.StatusCode != http.StatusBadRequest || n != 0 {
		t.Fatalf("status = %d, submitted = %d", resp.StatusCode, n)
	}
}

func TestJobLookupAndErrors(t *testing.T) {
	svc := newFakeService()
	svc.jobs["run"] = types.JobSnapshot{ID: "run", State: types.StateTranscribing, Progress: 0.5}
	srv := newServer(t, svc, Options{})

	resp, _ := http.Get(srv.URL + "/api/jobs/run")
	var snap types.JobSnapshot
	decode(t, resp, &snap)
	if snap.Progress != 0.5 {
		t.Fatalf("progress = %v", snap.Progress)
	}

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/jobs/missing", http.StatusNotFound},
		{http.MethodPost, "/api/jobs/run/restart", http.StatusConflict},
		{http.MethodGet, "/api/jobs/run/transcript", http.StatusConflict},
		{http.MethodGet, "/api/jobs/run/chunks", http.StatusOK},
		{http.MethodDelete, "/api/jobs/run", http.StatusOK},
		{http.MethodGet, "/api/jobs?limit=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.resetIDs) != 1 || svc.resetIDs[0] != "run" {
		t.Fatalf("reset ids = %v", svc.resetIDs)
	}
}

func TestDeleteWithPurge(t *testing.T) {
	svc := newFakeService()
	svc.jobs["done"] = types.JobSnapshot{ID: "done", State: types.StateCompleted}
	srv := newServer(t, svc, Options{})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/jobs/done?purge=true", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second purge status = %d, want 404", resp.StatusCode)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.purgedIDs) != 1 || len(svc.resetIDs) != 0 {
		t.Fatalf("purged = %v, reset = %v", svc.purgedIDs, svc.resetIDs)
	}
}

func TestDownloadTranscript(t *testing.T) {
	dir := t.TempDir()
	transcript := filepath.Join(dir, "transcribed_text.txt")
	if err := os.WriteFile(transcript, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := newFakeService()
	svc.jobs["done"] = types.JobSnapshot{ID: "done", State: types.StateCompleted, Artifacts: types.Artifacts{TranscriptPath: transcript}}
	srv := newServer(t, svc, Options{})

	resp, err := http.Get(srv.URL + "/api/jobs/done/transcript")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "hello world" {
		t.Fatalf("status = %d, body = %q", resp.StatusCode, buf.String())
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "transcribed_text.txt") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	report, _ := http.Get(srv.URL + "/api/jobs/done/report")
	report.Body.Close()
	if report.StatusCode != http.StatusNotFound {
		t.Fatalf("report status = %d, want 404", report.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	const secret = "s3cret"
	srv := newServer(t, newFakeService(), Options{JWTSecret: secret})

	sign := func(key string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "tester",
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString([]byte(key))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign("other", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(secret, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(secret, time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	// health stays public
	resp, _ := http.Get(srv.URL + "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
