package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thepathwise/intake/internal/apperr"
)

// InsecureJWTSecret is the built-in admin token secret. Validate rejects it
// outside development.
const InsecureJWTSecret = "intake-dev-secret"

const DefaultSheetName = "Mentee Applications Tracking Batch 5/2025"

var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5001",
	"https://www.thepathwise.org",
	"https://pathwise-website-c55a.vercel.app",
	"https://pathwise-website-server.onrender.com",
}

type Config struct {
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	APITimeout     time.Duration `yaml:"timeout"`
	TokenDuration  time.Duration `yaml:"token_duration"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	UploadDir      string        `yaml:"upload_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`

	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Events   EventsConfig   `yaml:"events"`
	Sync     SyncConfig     `yaml:"sync"`
}

type DatabaseConfig struct {
	// DSN selects the backend: a path or file: URI for sqlite, postgres:// or
	// mongodb://.
	DSN string `yaml:"dsn"`
}

type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsFile string `yaml:"credentials_file"`
}

type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

type SyncConfig struct {
	// Interval between scheduled sheet syncs; zero disables the schedule.
	Interval time.Duration `yaml:"interval"`
	// Debounce collapses bursts of submission events into one sync.
	Debounce time.Duration `yaml:"debounce"`
}

func LoadConfig(path string) (*Config, error) {
	addr := ":5001"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	dsn := getEnv("DATABASE_DSN", getEnv("MONGO_URI", "intake.db"))

	interval, err := getEnvDuration("SYNC_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:           getEnv("INTAKE_ADDR", addr),
		JWTSecret:      getEnv("INTAKE_JWT_SECRET", InsecureJWTSecret),
		APITimeout:     30 * time.Second,
		TokenDuration:  1 * time.Hour,
		AllowedOrigins: getEnvList("INTAKE_ALLOWED_ORIGINS", DefaultAllowedOrigins),
		UploadDir:      getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes: 10 << 20,
		Database:       DatabaseConfig{DSN: dsn},
		Storage: StorageConfig{
			Bucket:   os.Getenv("FILES_BUCKET_NAME"),
			Region:   os.Getenv("AWS_REGION"),
			Prefix:   getEnv("S3_KEY_PREFIX", "resumes/"),
			Endpoint: os.Getenv("S3_ENDPOINT"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
			SheetName:       getEnv("GOOGLE_SHEET_NAME", DefaultSheetName),
			CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_KEY"),
			CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		},
		Events: EventsConfig{
			AMQPURL: os.Getenv("RABBITMQ_URL"),
			Queue:   getEnv("RABBITMQ_QUEUE", "submission_events"),
		},
		Sync: SyncConfig{Interval: interval, Debounce: 30 * time.Second},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return &apperr.ConfigError{Key: "addr", Msg: "must not be empty"}
	}
	if c.APITimeout <= 0 {
		return &apperr.ConfigError{Key: "timeout", Msg: "must be positive"}
	}
	if c.JWTSecret == "" {
		return &apperr.ConfigError{Key: "jwt_secret", Msg: "must not be empty"}
	}
	if c.JWTSecret == InsecureJWTSecret && os.Getenv("INTAKE_ENV") != "development" {
		return &apperr.ConfigError{Key: "jwt_secret", Msg: "insecure default secret; set INTAKE_JWT_SECRET or INTAKE_ENV=development"}
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.MaxUploadBytes <= 0 {
		return &apperr.ConfigError{Key: "max_upload_bytes", Msg: "must be positive"}
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return &apperr.ConfigError{Key: "database.dsn", Msg: "must not be empty"}
	}
	if c.Sync.Interval < 0 {
		return &apperr.ConfigError{Key: "sync.interval", Msg: "must not be negative"}
	}
	if c.Sync.Debounce <= 0 {
		c.Sync.Debounce = 30 * time.Second
	}
	if c.Events.AMQPURL != "" && c.Events.Queue == "" {
		c.Events.Queue = "submission_events"
	}
	return nil
}

// ValidateStorage checks what the upload manager needs.
func (c *Config) ValidateStorage() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return &apperr.ConfigError{Key: "FILES_BUCKET_NAME", Msg: "bucket name is required"}
	}
	if strings.TrimSpace(c.Storage.Region) == "" {
		return &apperr.ConfigError{Key: "AWS_REGION", Msg: "region is required"}
	}
	return nil
}

// ValidateSheets checks what the sheet sync job needs.
func (c *Config) ValidateSheets() error {
	if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
		return &apperr.ConfigError{Key: "GOOGLE_SPREADSHEET_ID", Msg: "spreadsheet id is required"}
	}
	if c.Sheets.CredentialsJSON == "" && c.Sheets.CredentialsFile == "" {
		return &apperr.ConfigError{Key: "GOOGLE_SERVICE_ACCOUNT_KEY", Msg: "service account credentials are required"}
	}
	if strings.TrimSpace(c.Sheets.SheetName) == "" {
		c.Sheets.SheetName = DefaultSheetName
	}
	return nil
}

// Credentials returns the service account key, read from CredentialsFile
// when no inline key is configured.
func (s SheetsConfig) Credentials() ([]byte, error) {
	if s.CredentialsJSON != "" {
		return []byte(s.CredentialsJSON), nil
	}
	if s.CredentialsFile == "" {
		return nil, &apperr.ConfigError{Key: "GOOGLE_SERVICE_ACCOUNT_KEY", Msg: "service account credentials are required"}
	}
	b, err := os.ReadFile(s.CredentialsFile)
	if err != nil {
		return nil, &apperr.ConfigError{Key: "GOOGLE_SERVICE_ACCOUNT_FILE", Msg: err.Error()}
	}
	return b, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvDuration accepts Go durations ("15m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &apperr.ConfigError{Key: key, Msg: fmt.Sprintf("invalid duration %q", v)}
	}
	return d, nil
}
