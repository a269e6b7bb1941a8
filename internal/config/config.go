package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ModelSizes are the recognized Whisper model size selectors.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// SpeakerPolicies are the recognized policies for transcript segments that
// overlap no diarization turn.
var SpeakerPolicies = []string{"none", "carry"}

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Media source
	SourceType string `env:"SOURCE_TYPE" envDefault:"local"` // "local" or "s3"
	MediaDir   string `env:"MEDIA_DIR" envDefault:"./media"`
	ScratchDir string `env:"SCRATCH_DIR"` // empty = os.TempDir()

	S3 S3Config `envPrefix:"S3_"`

	// Transcription
	WhisperURL      string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	ModelSize       string        `env:"MODEL_SIZE" envDefault:"base"`
	LanguageHint    string        `env:"LANGUAGE_HINT"`
	BeamSize        int           `env:"BEAM_SIZE" envDefault:"5"`
	WhisperTimeout  time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`
	MinAudioSeconds float64       `env:"MIN_AUDIO_SECONDS" envDefault:"0.1"`

	// Diarization
	EnableDiarization      bool          `env:"ENABLE_DIARIZATION" envDefault:"false"`
	DiarizeURL             string        `env:"DIARIZE_URL" envDefault:"http://localhost:8001/diarize"`
	DiarizeTimeout         time.Duration `env:"DIARIZE_TIMEOUT" envDefault:"10m"`
	UnmatchedSpeakerPolicy string        `env:"UNMATCHED_SPEAKER_POLICY" envDefault:"none"`

	// Summarization
	SummaryAPIKeys    []string `env:"SUMMARY_API_KEYS"`
	SummaryModel      string   `env:"SUMMARY_MODEL" envDefault:"gemini-2.5-flash"`
	SummaryCategories []string `env:"SUMMARY_CATEGORIES" envDefault:"action,decision,question,followup"`

	// Batch behavior
	SkipAlreadyTranscribed bool          `env:"SKIP_ALREADY_TRANSCRIBED" envDefault:"true"`
	ForceRetranscribe      bool          `env:"FORCE_RETRANSCRIBE" envDefault:"false"`
	ProgressInterval       int           `env:"PROGRESS_INTERVAL" envDefault:"10"`
	WorkerConcurrency      int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	FileTimeout            time.Duration `env:"FILE_TIMEOUT"` // 0 = no per-file budget
	Watch                  bool          `env:"WATCH" envDefault:"false"`

	// HTTP API
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	AuthToken    string        `env:"AUTH_TOKEN"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the S3 media source.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile           string
	MediaDir          string
	HTTPAddr          string
	LogLevel          string
	DatabaseURL       string
	ForceRetranscribe bool
	Watch             bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.ForceRetranscribe {
		cfg.ForceRetranscribe = true
	}
	if overrides.Watch {
		cfg.Watch = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !contains(ModelSizes, c.ModelSize) {
		return fmt.Errorf("invalid MODEL_SIZE %q: must be one of %s", c.ModelSize, strings.Join(ModelSizes, ", "))
	}
	if !contains(SpeakerPolicies, c.UnmatchedSpeakerPolicy) {
		return fmt.Errorf("invalid UNMATCHED_SPEAKER_POLICY %q: must be one of %s", c.UnmatchedSpeakerPolicy, strings.Join(SpeakerPolicies, ", "))
	}
	switch c.SourceType {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("SOURCE_TYPE=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("invalid SOURCE_TYPE %q: must be local or s3", c.SourceType)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1, got %d", c.WorkerConcurrency)
	}
	if c.ProgressInterval < 1 {
		return fmt.Errorf("PROGRESS_INTERVAL must be >= 1, got %d", c.ProgressInterval)
	}
	return nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
