// Package config loads studykit settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/abhisek/studykit/internal/store"
)

// EnvPrefix is prepended to every environment key, e.g. STUDYKIT_ADDR.
const EnvPrefix = "STUDYKIT"

// Keys shared by flags, environment variables and Config.
const (
	KeyDB              = "db"
	KeyDriver          = "driver"
	KeyAddr            = "addr"
	KeyLambda          = "lambda"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyMaxUploadMB     = "max-upload-mb"
	KeyExtractor       = "extractor"
	KeyTikaURL         = "tika-url"
	KeyQARPS           = "qa-rps"
	KeyQABurst         = "qa-burst"
	KeyRecommendations = "recommendations"
	KeyExamSize        = "exam-size"
	KeyExamDuration    = "exam-duration"
	KeySessionMaxAge   = "session-max-age"
)

// Text extractor backends.
const (
	ExtractorPDF  = "pdf"
	ExtractorTika = "tika"
)

// Config is the resolved runtime configuration.
type Config struct {
	DB     string
	Driver string

	Addr   string
	Lambda bool

	LogLevel  string
	LogFormat string

	MaxUploadMB int
	Extractor   string
	TikaURL     string
	QARPS       float64
	QABurst     int

	Recommendations int
	ExamSize        int
	ExamDuration    time.Duration
	SessionMaxAge   time.Duration
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDriver, store.DriverSQLite)
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyMaxUploadMB, 25)
	v.SetDefault(KeyExtractor, ExtractorPDF)
	v.SetDefault(KeyTikaURL, "http://localhost:9998")
	v.SetDefault(KeyQARPS, 1.0)
	v.SetDefault(KeyQABurst, 5)
	v.SetDefault(KeyRecommendations, 3)
	v.SetDefault(KeyExamSize, 30)
	v.SetDefault(KeyExamDuration, 30*time.Minute)
	v.SetDefault(KeySessionMaxAge, 2*time.Hour)
	return v
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored and existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		DB:              v.GetString(KeyDB),
		Driver:          strings.ToLower(v.GetString(KeyDriver)),
		Addr:            v.GetString(KeyAddr),
		Lambda:          v.GetBool(KeyLambda),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       strings.ToLower(v.GetString(KeyLogFormat)),
		MaxUploadMB:     v.GetInt(KeyMaxUploadMB),
		Extractor:       strings.ToLower(v.GetString(KeyExtractor)),
		TikaURL:         v.GetString(KeyTikaURL),
		QARPS:           v.GetFloat64(KeyQARPS),
		QABurst:         v.GetInt(KeyQABurst),
		Recommendations: v.GetInt(KeyRecommendations),
		ExamSize:        v.GetInt(KeyExamSize),
		ExamDuration:    v.GetDuration(KeyExamDuration),
		SessionMaxAge:   v.GetDuration(KeySessionMaxAge),
	}
	if c.Driver == "sqlite3" {
		c.Driver = store.DriverSQLite
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks enumerations and numeric ranges.
func (c *Config) Validate() error {
	switch c.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("%s: unsupported driver %q (want sqlite or postgres)", KeyDriver, c.Driver)
	}
	if c.Driver == store.DriverPostgres && c.DB == "" {
		return fmt.Errorf("%s: a connection string is required for postgres", KeyDB)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s: unsupported format %q (want text or json)", KeyLogFormat, c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	switch c.Extractor {
	case ExtractorPDF, ExtractorTika:
	default:
		return fmt.Errorf("%s: unsupported extractor %q (want pdf or tika)", KeyExtractor, c.Extractor)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyMaxUploadMB, c.MaxUploadMB)
	}
	if c.QARPS <= 0 || c.QABurst <= 0 {
		return fmt.Errorf("%s and %s must be positive", KeyQARPS, KeyQABurst)
	}
	if c.ExamSize <= 0 || c.ExamDuration <= 0 {
		return fmt.Errorf("%s and %s must be positive", KeyExamSize, KeyExamDuration)
	}
	if c.SessionMaxAge <= c.ExamDuration {
		return fmt.Errorf("%s (%s) must exceed %s (%s)", KeySessionMaxAge, c.SessionMaxAge, KeyExamDuration, c.ExamDuration)
	}
	if c.Recommendations < 0 {
		return fmt.Errorf("%s must not be negative", KeyRecommendations)
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ResolveDBPath returns the configured database, falling back to the
// default SQLite file location.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DB != "" {
		if c.Driver == store.DriverSQLite {
			return c.DB, store.EnsureDir(c.DB)
		}
		return c.DB, nil
	}
	return store.DefaultDBPath()
}

// NewLogger builds a logrus logger for the configured level and format.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
