package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Speech recognition
	ModelPath     string `env:"MODEL_PATH" envDefault:"/app/vosk-model-en-us-0.22"`
	ModelURL      string `env:"MODEL_URL"`
	VoskServerURL string `env:"VOSK_SERVER_URL"`
	SampleRate    int    `env:"SAMPLE_RATE" envDefault:"16000"`

	// Caption rendering
	FontPath string `env:"FONT_PATH" envDefault:"/app/fonts/Lexend-Bold.ttf"`
	FontsDir string `env:"FONTS_DIR" envDefault:"/app/fonts"`
	FontSize int    `env:"FONT_SIZE" envDefault:"200"`
	YOffset  int    `env:"Y_OFFSET" envDefault:"700"`

	// Encoding
	HWAccel      string `env:"HWACCEL" envDefault:"auto"` // auto, qsv, vaapi, off
	VideoBitrate string `env:"VIDEO_BITRATE"`

	// Job control
	MaxUploadMB       int64         `env:"MAX_UPLOAD_MB" envDefault:"512"`
	MaxConcurrentJobs int           `env:"MAX_CONCURRENT_JOBS" envDefault:"1"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT" envDefault:"30m"`

	// Watch-directory ingest (disabled when WatchDir is empty)
	WatchDir        string        `env:"WATCH_DIR"`
	OutputDir       string        `env:"OUTPUT_DIR" envDefault:"./output"`
	OutputRetention time.Duration `env:"OUTPUT_RETENTION"`
	Workers         int           `env:"WORKERS" envDefault:"1"`
	QueueSize       int           `env:"QUEUE_SIZE" envDefault:"16"`

	// Job history (disabled when DatabaseURL is empty)
	DatabaseURL string `env:"DATABASE_URL"`

	// MQTT completion events (disabled when MQTTBrokerURL is empty)
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"vosk-captions"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"captions/events"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	S3 S3Config
}

// S3Config enables S3 result storage when Bucket is set.
type S3Config struct {
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket        string        `env:"S3_BUCKET"`
	Prefix        string        `env:"S3_PREFIX"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"24h"`
}

// Enabled reports whether S3 storage is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile   string
	HTTPAddr  string
	LogLevel  string
	ModelPath string
	WatchDir  string
	OutputDir string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.ModelPath != "" {
		cfg.ModelPath = overrides.ModelPath
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.HWAccel {
	case "auto", "qsv", "vaapi", "off":
	default:
		return fmt.Errorf("invalid HWACCEL %q: must be auto, qsv, vaapi, or off", c.HWAccel)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be >= 1, got %d", c.MaxConcurrentJobs)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.FontSize < 1 {
		return fmt.Errorf("FONT_SIZE must be >= 1, got %d", c.FontSize)
	}
	return nil
}
