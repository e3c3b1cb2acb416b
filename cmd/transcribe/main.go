package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"video-transcript-go/internal/app"
	"video-transcript-go/internal/config"
	"video-transcript-go/internal/dataset"
	"video-transcript-go/internal/logger"
	"video-transcript-go/internal/pipeline"
	"video-transcript-go/internal/types"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {

	var (
		inPath         string
		manifestPath   string
		transcriptPath string
		audioPath      string
		summaryPath    string
		workers        int
		chunkSeconds   int
		mock           bool
		printText      bool
	)
	flag.StringVar(&inPath, "input", "", "Input video file path (-i)")
	flag.StringVar(&inPath, "i", "", "Input video file path")
	flag.StringVar(&manifestPath, "manifest", "", "Batch manifest (.xlsx or .csv) with a column of video paths")
	flag.StringVar(&transcriptPath, "transcript", "", "Transcript output path for a single video (default OUTPUT_DIR/TRANSCRIPT_NAME)")
	flag.StringVar(&audioPath, "audio", "", "Extracted audio output path for a single video (default OUTPUT_DIR/AUDIO_NAME)")
	flag.StringVar(&summaryPath, "summary", "", "Batch summary workbook (default OUTPUT_DIR/batch_summary.xlsx)")
	flag.IntVar(&workers, "workers", 0, "Concurrent chunk requests (overrides WORKERS)")
	flag.IntVar(&chunkSeconds, "chunk-seconds", 0, "Chunk length in seconds (overrides CHUNK_SECONDS)")
	flag.BoolVar(&mock, "mock", false, "Use canned transcripts instead of the inference endpoint")
	flag.BoolVar(&printText, "print", false, "Print the transcript to stdout")
	flag.Parse()

	log := logger.NewWithOutput(os.Stderr)

	if (inPath == "") == (manifestPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -input or -manifest is required")
		flag.Usage()
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 2
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if chunkSeconds > 0 {
		cfg.ChunkSeconds = chunkSeconds
	}
	cfg.MockTranscribe = cfg.MockTranscribe || mock
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := app.NewOrchestrator(cfg, log)

	if manifestPath != "" {
		if summaryPath == "" {
			summaryPath = filepath.Join(cfg.OutputDir, "batch_summary.xlsx")
		}
		return runBatch(ctx, orch, manifestPath, summaryPath, log)
	}

	if transcriptPath == "" {
		transcriptPath = filepath.Join(cfg.OutputDir, cfg.TranscriptName)
	}
	if audioPath == "" {
		audioPath = filepath.Join(cfg.OutputDir, cfg.AudioName)
	}
	job := pipeline.NewJob(inPath).WithOutputPaths(transcriptPath, audioPath)
	res, err := orch.Run(ctx, job, pipeline.LogSink{Log: log.WithJob(job.ID())})
	if err != nil {
		log.WithError(err).Error("transcription failed")
		return 1
	}

	snap := job.Snapshot()
	log.WithField("transcript", snap.Artifacts.TranscriptPath).
		WithField("audio", snap.Artifacts.AudioPath).
		WithField("report", snap.Artifacts.ReportPath).
		Info(snap.Summary)
	if res.Transcript.Empty() {
		log.Warn("no chunk was transcribed, transcript is empty")
	}
	if printText {
		fmt.Println(res.Transcript.Text)
	}
	return 0
}

// runBatch transcribes every manifest row in order and returns the exit code.
func runBatch(ctx context.Context, orch *pipeline.Orchestrator, manifestPath, summaryPath string, log *logger.Logger) int {
	entries, err := dataset.Load(manifestPath, log)
	if err != nil {
		log.WithError(err).Error("failed to load manifest")
		return 1
	}

	results := make([]types.BatchResult, 0, len(entries))
	failed := 0
	for i, entry := range entries {
		if ctx.Err() != nil {
			log.WithField("remaining", len(entries)-i).Warn("batch interrupted")
			break
		}

		job := pipeline.NewJob(entry.VideoPath)
		jobLog := log.WithJob(job.ID())
		jobLog.WithField("row", entry.Row).
			WithField("video", entry.VideoPath).
			Infof("batch item %d/%d", i+1, len(entries))

		start := time.Now()
		_, err := orch.Run(ctx, job, pipeline.LogSink{Log: jobLog})
		snap := job.Snapshot()
		r := types.BatchResult{
			Entry:          entry,
			JobID:          snap.ID,
			State:          snap.State,
			Summary:        snap.Summary,
			TotalChunks:    snap.TotalChunks,
			Succeeded:      snap.Succeeded,
			Failed:         snap.Failed,
			TranscriptPath: snap.Artifacts.TranscriptPath,
			ElapsedSec:     time.Since(start).Seconds(),
		}
		if err != nil {
			r.Error = err.Error()
			failed++
			if !errors.Is(err, context.Canceled) {
				jobLog.WithError(err).Warn("batch item failed, continuing")
			}
		}
		results = append(results, r)
	}

	summary, err := dataset.WriteSummary(summaryPath, results, log)
	if err != nil {
		log.WithError(err).Error("failed to write batch summary")
		return 1
	}
	log.WithField("videos", summary.Videos).
		WithField("failed", failed).
		WithField("summary", summaryPath).
		Info("batch finished")
	if failed > 0 || len(results) < len(entries) {
		return 1
	}
	return 0
}
