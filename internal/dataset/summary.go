package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

// Summarize aggregates batch results by terminal state and chunk counts.
func Summarize(results []types.BatchResult) types.BatchSummary {
	s := types.BatchSummary{Videos: len(results), ByState: map[string]int{}}
	for _, r := range results {
		state := string(r.State)
		if state == "" {
			state = "not_started"
		}
		s.ByState[state]++
		s.ChunksOK += r.Succeeded
		s.ChunksFailed += r.Failed
		if r.State == types.StateCompleted && r.Succeeded == 0 {
			s.EmptyResults++
		}
	}
	return s
}

var batchHeader = []any{"Row", "Label", "Video", "Job ID", "State", "Chunks", "Transcribed", "Failed", "Seconds", "Transcript", "Summary", "Error"}

// WriteSummary writes the batch results and totals to an xlsx workbook.
func WriteSummary(path string, results []types.BatchResult, log *logger.Logger) (types.BatchSummary, error) {
	entry := log.Component("dataset.summary").WithField("path", path)
	summary := Summarize(results)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Batch"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return summary, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &batchHeader); err != nil {
		return summary, fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		row := []any{
			r.Entry.Row, r.Entry.Label, r.Entry.VideoPath, r.JobID, string(r.State),
			r.TotalChunks, r.Succeeded, r.Failed, r.ElapsedSec, r.TranscriptPath, r.Summary, r.Error,
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return summary, err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return summary, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	const totals = "Totals"
	if _, err := f.NewSheet(totals); err != nil {
		return summary, fmt.Errorf("add totals sheet: %w", err)
	}
	lines := [][]any{
		{"Videos", summary.Videos},
		{"Chunks transcribed", summary.ChunksOK},
		{"Chunks failed", summary.ChunksFailed},
		{"Completed with empty transcript", summary.EmptyResults},
	}
	for _, state := range []types.JobState{types.StateCompleted, types.StateFailed, types.StateCancelled} {
		lines = append(lines, []any{"State " + string(state), summary.ByState[string(state)]})
	}
	for i, line := range lines {
		if err := f.SetSheetRow(totals, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return summary, fmt.Errorf("write totals: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return summary, fmt.Errorf("create summary dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		entry.WithError(err).Error("save failed")
		return summary, fmt.Errorf("save summary: %w", err)
	}
	entry.WithField("videos", summary.Videos).
		WithField("completed", summary.ByState[string(types.StateCompleted)]).
		Info("batch summary written")
	return summary, nil
}
