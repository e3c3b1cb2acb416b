package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cellRef, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestLoadXLSXDetectsVideoColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.xlsx")
	writeXLSX(t, path, [][]any{
		{"Title", "Notes", "Video File"},
		{"intro", "x", "clips/intro.mp4"},
		{"blank", "y", ""},
		{"abs", "z", "/data/abs.mov"},
	})

	got, err := Load(path, logger.Discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []types.BatchEntry{
		{Row: 2, VideoPath: filepath.Join(dir, "clips/intro.mp4"), Label: "intro"},
		{Row: 4, VideoPath: "/data/abs.mov", Label: "abs"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadCSVFallsBackToFirstColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.csv")
	if err := os.WriteFile(path, []byte("source,comment\na.mp4,first\nb.mp4,second\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, logger.Discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[1].VideoPath != filepath.Join(dir, "b.mp4") || got[1].Label != "" {
		t.Fatalf("got = %+v", got)
	}
}

func TestLoadEmptyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("video\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, logger.Discard()); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("Load() error = %v, want ErrNoEntries", err)
	}
}

func TestWriteSummary(t *testing.T) {
	results := []types.BatchResult{
		{Entry: types.BatchEntry{Row: 2, VideoPath: "a.mp4"}, State: types.StateCompleted, TotalChunks: 3, Succeeded: 2, Failed: 1},
		{Entry: types.BatchEntry{Row: 3, VideoPath: "b.mp4"}, State: types.StateCompleted, TotalChunks: 2, Failed: 2},
		{Entry: types.BatchEntry{Row: 4, VideoPath: "c.mp4"}, State: types.StateFailed, Error: "media: no audio"},
	}
	path := filepath.Join(t.TempDir(), "out", "batch.xlsx")

	s, err := WriteSummary(path, results, logger.Discard())
	if err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}
	if s.Videos != 3 || s.ChunksOK != 2 || s.ChunksFailed != 3 || s.EmptyResults != 1 || s.ByState["failed"] != 1 {
		t.Fatalf("summary = %+v", s)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Batch")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[3][4] != "failed" || rows[3][11] != "media: no audio" {
		t.Fatalf("rows = %v", rows)
	}
}
