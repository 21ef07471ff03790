package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Signature SignatureConfig `yaml:"signature"`
	Match     MatchConfig     `yaml:"match"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Backend      string `yaml:"backend"`        // sqlite or postgres
	Path         string `yaml:"path"`           // SQLite file (sqlite backend)
	URL          string `yaml:"url"`            // PostgreSQL connection URL (postgres backend)
	MaxOpenConns int    `yaml:"max_open_conns"` // postgres only, sqlite always uses one connection
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type SignatureConfig struct {
	Dim int `yaml:"dim"` // length of every stored signature
}

type MatchConfig struct {
	// Threshold is the Euclidean distance under which two signatures are the same
	// person. 0.6 suits dlib's 128-d encodings.
	Threshold float64 `yaml:"threshold"`
	Index     string  `yaml:"index"` // linear or hnsw
}

type EncoderConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the encoder request timeout.
func (c *EncoderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS, localhost is always allowed
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c *WebConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// envString returns the environment variable or the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration embedded in the binary.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Database: DatabaseConfig{
			Backend:      strings.ToLower(envString("DATABASE_BACKEND", d.Database.Backend)),
			Path:         envString("DATABASE_PATH", d.Database.Path),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Signature: SignatureConfig{
			Dim: envInt("SIGNATURE_DIM", d.Signature.Dim),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Match.Threshold),
			Index:     strings.ToLower(envString("MATCH_INDEX", d.Match.Index)),
		},
		Encoder: EncoderConfig{
			URL:            envString("ENCODER_URL", d.Encoder.URL),
			TimeoutSeconds: envInt("ENCODER_TIMEOUT", d.Encoder.TimeoutSeconds),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", d.Web.Host),
			Port: envInt("WEB_PORT", d.Web.Port),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
			MaxUploadMB:    envInt("WEB_MAX_UPLOAD_MB", d.Web.MaxUploadMB),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", d.Log.Level)),
			Format: strings.ToLower(envString("LOG_FORMAT", d.Log.Format)),
		},
	}
}
