package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"video-transcript-go/internal/transcription"
)

// Join modes.
const (
	JoinSpace   = "space"
	JoinNewline = "newline"
)

// Gap policies for chunks that failed.
const (
	GapSkip   = "skip"
	GapMarker = "marker"
)

// AssemblyOptions controls how chunk texts are concatenated.
type AssemblyOptions struct {
	Join      string
	GapPolicy string
	// GapMarker is written in place of a failed chunk under GapMarker
	// policy. A %d verb receives the chunk index.
	GapMarker string
}

// Transcript is the ordered concatenation of successful chunk texts.
type Transcript struct {
	Text      string
	Total     int
	Succeeded int
	Failed    []int
}

// Summary is the user-facing completion line.
func (t Transcript) Summary() string {
	s := fmt.Sprintf("%d of %d chunks transcribed", t.Succeeded, t.Total)
	if len(t.Failed) == 0 {
		return s
	}
	idx := make([]string, len(t.Failed))
	for i, f := range t.Failed {
		idx[i] = strconv.Itoa(f)
	}
	return s + "; failed chunks: " + strings.Join(idx, ", ")
}

// Empty reports whether no text was produced.
func (t Transcript) Empty() bool { return strings.TrimSpace(t.Text) == "" }

// Assemble joins successful texts in chunk-index order. Outcomes may be
// given in any order.
func Assemble(outcomes []transcription.Outcome, opts AssemblyOptions) Transcript {
	ordered := make([]transcription.Outcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Index < ordered[b].Index })

	sep := " "
	if opts.Join == JoinNewline {
		sep = "\n"
	}

	t := Transcript{Total: len(ordered)}
	parts := make([]string, 0, len(ordered))
	for _, o := range ordered {
		if !o.OK() {
			t.Failed = append(t.Failed, o.Index)
			if opts.GapPolicy == GapMarker {
				parts = append(parts, gapMarker(opts.GapMarker, o.Index))
			}
			continue
		}
		t.Succeeded++
		if text := strings.TrimSpace(o.Text); text != "" {
			parts = append(parts, text)
		}
	}
	t.Text = strings.Join(parts, sep)
	return t
}

func gapMarker(format string, index int) string {
	if format == "" {
		format = "[chunk %d unavailable]"
	}
	if strings.Contains(format, "%d") {
		return fmt.Sprintf(format, index)
	}
	return format
}
