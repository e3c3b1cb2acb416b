package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/types"
)

var ErrNoEntries = errors.New("manifest has no video rows")

// Load reads a batch manifest (.xlsx or .csv) and returns one entry per
// row with a video path. The video column is found by header heuristics,
// falling back to the first column. Relative paths resolve against the
// manifest's directory.
func Load(path string, log *logger.Logger) ([]types.BatchEntry, error) {
	log = log.Component("dataset.loader")
	entry := log.WithField("path", path)
	entry.Info("opening manifest")

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	default:
		rows, err = readXLSX(path)
	}
	if err != nil {
		entry.WithError(err).Error("read failed")
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, ErrNoEntries
	}

	videoIdx, labelIdx := detectColumns(rows[0])
	entry.WithField("video_idx", videoIdx).
		WithField("label_idx", labelIdx).
		Info("detected manifest column indices")

	base := filepath.Dir(path)
	var out []types.BatchEntry
	for i, r := range rows {
		if i == 0 {
			continue
		}
		video := cell(r, videoIdx)
		if video == "" {
			continue
		}
		if !filepath.IsAbs(video) {
			video = filepath.Join(base, video)
		}
		out = append(out, types.BatchEntry{
			Row:       i + 1,
			VideoPath: video,
			Label:     cell(r, labelIdx),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoEntries
	}
	entry.WithField("entries", len(out)).Info("manifest loaded")
	return out, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func detectColumns(header []string) (videoIdx, labelIdx int) {
	videoIdx, labelIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "video") || strings.Contains(l, "path") || strings.Contains(l, "file"):
			if videoIdx == -1 {
				videoIdx = i
			}
		case strings.Contains(l, "label") || strings.Contains(l, "name") || strings.Contains(l, "title") || strings.Contains(l, "id"):
			if labelIdx == -1 {
				labelIdx = i
			}
		}
	}
	if videoIdx == -1 {
		videoIdx = 0
		if labelIdx == 0 {
			labelIdx = -1
		}
	}
	return videoIdx, labelIdx
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
