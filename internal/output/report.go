package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"video-transcript-go/internal/types"
)

const (
	chunkSheet   = "Chunks"
	summarySheet = "Summary"
)

var chunkHeader = []any{"Index", "Start (s)", "End (s)", "Status", "Failure", "HTTP Status", "Attempts", "Elapsed (ms)", "Text"}

// WriteChunkReport writes one row per chunk so failed gaps in the transcript
// can be located by time offset.
func WriteChunkReport(path, jobID, summary string, chunks []types.ChunkResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", chunkSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(chunkSheet, "A1", &chunkHeader); err != nil {
		return err
	}
	for i, c := range chunks {
		status := "ok"
		if !c.OK {
			status = "failed"
		}
		var code any
		if c.StatusCode != 0 {
			code = c.StatusCode
		}
		row := []any{c.Index, c.StartSec, c.EndSec, status, c.FailKind, code, c.Attempts, c.ElapsedMs, c.Text}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(chunkSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(chunkSheet, "I", "I", 80); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	ok := 0
	for _, c := range chunks {
		if c.OK {
			ok++
		}
	}
	rows := [][]any{
		{"Job", jobID},
		{"Chunks", len(chunks)},
		{"Succeeded", ok},
		{"Failed", len(chunks) - ok},
		{"Summary", summary},
	}
	for i, r := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &r); err != nil {
			return err
		}
	}

	return writeAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
}
