package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"video-transcript-go/internal/types"
)

var ErrNotFound = errors.New("job not found")

// Store keeps job history and per-chunk results in SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		video_path TEXT NOT NULL,
		state TEXT NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		total_chunks INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		transcript_path TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL DEFAULT '',
		report_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS chunk_results (
		job_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		start_sec REAL NOT NULL,
		end_sec REAL NOT NULL,
		ok INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		fail_kind TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (job_id, idx),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces the job row.
func (s *Store) Save(j types.JobSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, video_path, state, progress, total_chunks, succeeded, failed, summary, error,
			transcript_path, audio_path, report_path, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, progress=excluded.progress, total_chunks=excluded.total_chunks,
			succeeded=excluded.succeeded, failed=excluded.failed, summary=excluded.summary,
			error=excluded.error, transcript_path=excluded.transcript_path, audio_path=excluded.audio_path,
			report_path=excluded.report_path, started_at=excluded.started_at, finished_at=excluded.finished_at`,
		j.ID, j.VideoPath, string(j.State), j.Progress, j.TotalChunks, j.Succeeded, j.Failed, j.Summary, j.Error,
		j.Artifacts.TranscriptPath, j.Artifacts.AudioPath, j.Artifacts.ReportPath,
		j.CreatedAt, nullTime(j.StartedAt), nullTime(j.FinishedAt),
	)
	return err
}

// UpdateProgress is the cheap path used on every chunk outcome.
func (s *Store) UpdateProgress(id string, progress float64, succeeded, failed int) error {
	_, err := s.db.Exec("UPDATE jobs SET progress = ?, succeeded = ?, failed = ? WHERE id = ?", progress, succeeded, failed, id)
	return err
}

const jobColumns = `id, video_path, state, progress, total_chunks, succeeded, failed, summary, error,
	transcript_path, audio_path, report_path, created_at, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (types.JobSnapshot, error) {
	var j types.JobSnapshot
	var state string
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(&j.ID, &j.VideoPath, &state, &j.Progress, &j.TotalChunks, &j.Succeeded, &j.Failed,
		&j.Summary, &j.Error, &j.Artifacts.TranscriptPath, &j.Artifacts.AudioPath, &j.Artifacts.ReportPath,
		&j.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return types.JobSnapshot{}, err
	}
	j.State = types.JobState(state)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Time
	}
	return j, nil
}

func (s *Store) Get(id string) (types.JobSnapshot, error) {
	j, err := scanJob(s.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.JobSnapshot{}, ErrNotFound
	}
	return j, err
}

// List returns jobs newest first. limit <= 0 means no limit.
func (s *Store) List(limit int) ([]types.JobSnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.JobSnapshot
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SaveChunks replaces the stored chunk results of a job.
func (s *Store) SaveChunks(jobID string, chunks []types.ChunkResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunk_results WHERE job_id = ?", jobID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO chunk_results (job_id, idx, start_sec, end_sec, ok, text, fail_kind, status_code, detail, attempts, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.Exec(jobID, c.Index, c.StartSec, c.EndSec, c.OK, c.Text, c.FailKind, c.StatusCode, c.Detail, c.Attempts, c.ElapsedMs); err != nil {
			return fmt.Errorf("chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Chunks(jobID string) ([]types.ChunkResult, error) {
	rows, err := s.db.Query(`
		SELECT idx, start_sec, end_sec, ok, text, fail_kind, status_code, detail, attempts, elapsed_ms
		FROM chunk_results WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ChunkResult
	for rows.Next() {
		var c types.ChunkResult
		if err := rows.Scan(&c.Index, &c.StartSec, &c.EndSec, &c.OK, &c.Text, &c.FailKind, &c.StatusCode, &c.Detail, &c.Attempts, &c.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a job and its chunk results.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInterrupted fails every job left non-terminal by a previous process.
func (s *Store) MarkInterrupted() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE jobs SET state = ?, error = 'interrupted by restart', finished_at = ?
		WHERE state NOT IN (?, ?, ?)`,
		string(types.StateFailed), time.Now().UTC(),
		string(types.StateCompleted), string(types.StateFailed), string(types.StateCancelled),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
