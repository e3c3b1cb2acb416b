package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const defaultEndpoint = "https://api-inference.huggingface.co/models/openai/whisper-large-v3"

// Config is the full runtime configuration. It is built once at startup and
// passed by value into the components that need it.
type Config struct {
	Environment string
	Port        int `validate:"gt=0,lte=65535"`

	Endpoint       string `validate:"required,url"`
	APIToken       string
	RequestTimeout time.Duration `validate:"gte=0"`
	MaxRetries     int           `validate:"gte=0"`
	RetryDelay     time.Duration `validate:"gte=0"`
	// MockTranscribe swaps the inference endpoint for canned text.
	MockTranscribe bool

	FFmpegPath   string `validate:"required"`
	SampleRate   int    `validate:"gt=0"`
	ChunkSeconds int    `validate:"gt=0"`
	Workers      int    `validate:"gte=1,lte=64"`

	JoinMode  string `validate:"oneof=space newline"`
	GapPolicy string `validate:"oneof=skip marker"`
	GapMarker string

	WorkDir        string `validate:"required"`
	OutputDir      string `validate:"required"`
	TranscriptName string `validate:"required"`
	AudioName      string `validate:"required"`
	WriteReport    bool

	DBPath      string `validate:"required"`
	JWTSecret   string
	CORSOrigins []string
	MaxUploadMB int64 `validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment and validates it.
func FromEnv() (Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(envOr(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		raw := envOr(key, def.String())
		// bare numbers are seconds
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Duration(n * float64(time.Second))
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	boolVar := func(key string, def bool) bool {
		v, err := strconv.ParseBool(envOr(key, strconv.FormatBool(def)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return v
	}

	outputDir := envOr("OUTPUT_DIR", "files")
	cfg := Config{
		Environment:    envOr("ENVIRONMENT", "local"),
		Port:           intVar("PORT", 8080),
		Endpoint:       envOr("HF_API_URL", defaultEndpoint),
		APIToken:       os.Getenv("HF_API_TOKEN"),
		RequestTimeout: durVar("REQUEST_TIMEOUT", 60*time.Second),
		MaxRetries:     intVar("MAX_RETRIES", 5),
		RetryDelay:     durVar("RETRY_DELAY", 5*time.Second),
		MockTranscribe: boolVar("USE_MOCK_TRANSCRIBE", false),
		FFmpegPath:     envOr("FFMPEG_PATH", "ffmpeg"),
		SampleRate:     intVar("SAMPLE_RATE", 16000),
		ChunkSeconds:   intVar("CHUNK_SECONDS", 30),
		Workers:        intVar("WORKERS", 1),
		JoinMode:       strings.ToLower(envOr("JOIN_MODE", "space")),
		GapPolicy:      strings.ToLower(envOr("GAP_POLICY", "skip")),
		GapMarker:      envOr("GAP_MARKER", "[chunk %d unavailable]"),
		WorkDir:        envOr("WORK_DIR", "files"),
		OutputDir:      outputDir,
		TranscriptName: envOr("TRANSCRIPT_NAME", "transcribed_text.txt"),
		AudioName:      envOr("AUDIO_NAME", "extracted_audio.wav"),
		WriteReport:    boolVar("WRITE_REPORT", true),
		DBPath:         envOr("DB_PATH", filepath.Join(outputDir, "jobs.db")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		CORSOrigins:    splitList(envOr("CORS_ORIGINS", "*")),
		MaxUploadMB:    int64(intVar("MAX_UPLOAD_MB", 1024)),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ChunkDuration is the configured segment length.
func (c Config) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkSeconds) * time.Second
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
