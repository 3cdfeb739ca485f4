// Package config centralizes how ReportDrop reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service and worker. It is
// built once in main and handed to constructors; nothing reads the
// environment after Load returns.
type Config struct {
	Address       string
	PublicBaseURL string
	TemplateDir   string
	Environment   string
	LogLevel      string
	LogFormat     string

	Renderer        string
	WkhtmltopdfPath string
	ChromeURL       string
	RenderTimeout   time.Duration
	QRDelayPerItem  time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AssetKeyPrefix string

	DatabaseURL string

	ArchiveEnabled  bool
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Region        string
	S3UseSSL        bool
	ArchiveBucket   string
	ArchiveWorkers  int
	SigningSecret   []byte
	SignedURLTTL    time.Duration
	SweepInterval   time.Duration
	SweepMaxAge     time.Duration
	MaxRequestBytes int64
}

const (
	defaultAddress        = ":8080"
	defaultTemplateDir    = "reports"
	defaultEnvironment    = "development"
	defaultRenderer       = "wkhtmltopdf"
	defaultWkhtmltopdf    = "wkhtmltopdf"
	defaultRenderTimeout  = 2 * time.Minute
	defaultQRDelay        = 50 * time.Millisecond
	defaultRedisAddr      = "localhost:6379"
	defaultArchiveBucket  = "reports"
	defaultArchiveWorkers = 2
	defaultSignedTTL      = 15 * time.Minute
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepMaxAge    = 30 * time.Minute
	defaultMaxRequest     = 8 << 20 // 8 MiB
)

// Load reads configuration from environment variables falling back to
// defaults. A .env file in the working directory is applied first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		Address:         readEnv("REPORTDROP_ADDRESS", defaultAddress),
		PublicBaseURL:   readEnv("REPORTDROP_PUBLIC_URL", ""),
		TemplateDir:     readEnv("REPORTDROP_TEMPLATE_DIR", defaultTemplateDir),
		Environment:     readEnv("REPORTDROP_ENV", defaultEnvironment),
		LogLevel:        readEnv("REPORTDROP_LOG_LEVEL", "info"),
		LogFormat:       readEnv("REPORTDROP_LOG_FORMAT", ""),
		Renderer:        strings.ToLower(readEnv("REPORTDROP_RENDERER", defaultRenderer)),
		WkhtmltopdfPath: readEnv("REPORTDROP_WKHTMLTOPDF", defaultWkhtmltopdf),
		ChromeURL:       readEnv("REPORTDROP_CHROME_URL", ""),
		RenderTimeout:   parseDuration("REPORTDROP_RENDER_TIMEOUT", defaultRenderTimeout),
		QRDelayPerItem:  parseDuration("REPORTDROP_QR_DELAY_PER_ITEM", defaultQRDelay),
		RedisAddr:       readEnv("REPORTDROP_REDIS_ADDR", defaultRedisAddr),
		RedisPassword:   readEnv("REPORTDROP_REDIS_PASSWORD", ""),
		RedisDB:         parseInt("REPORTDROP_REDIS_DB", 0),
		AssetKeyPrefix:  readEnv("REPORTDROP_ASSET_PREFIX", ""),
		DatabaseURL:     readEnv("REPORTDROP_DATABASE_URL", ""),
		ArchiveEnabled:  parseBool("REPORTDROP_ARCHIVE", false),
		S3Endpoint:      readEnv("REPORTDROP_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:     readEnv("REPORTDROP_S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("REPORTDROP_S3_SECRET_KEY", ""),
		S3Region:        readEnv("REPORTDROP_S3_REGION", "us-east-1"),
		S3UseSSL:        parseBool("REPORTDROP_S3_SSL", false),
		ArchiveBucket:   readEnv("REPORTDROP_ARCHIVE_BUCKET", defaultArchiveBucket),
		ArchiveWorkers:  parseInt("REPORTDROP_ARCHIVE_WORKERS", defaultArchiveWorkers),
		SigningSecret:   parseSecret("REPORTDROP_SIGNING_SECRET"),
		SignedURLTTL:    parseDuration("REPORTDROP_SIGNED_TTL", defaultSignedTTL),
		SweepInterval:   parseDuration("REPORTDROP_SWEEP_INTERVAL", defaultSweepInterval),
		SweepMaxAge:     parseDuration("REPORTDROP_SWEEP_MAX_AGE", defaultSweepMaxAge),
		MaxRequestBytes: parseInt64("REPORTDROP_MAX_REQUEST_BYTES", defaultMaxRequest),
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = localURL(cfg.Address)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.Environment == "production" {
			cfg.LogFormat = "json"
		}
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.ArchiveWorkers <= 0 {
		cfg.ArchiveWorkers = defaultArchiveWorkers
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = defaultRenderTimeout
	}
	if cfg.QRDelayPerItem < 0 {
		cfg.QRDelayPerItem = defaultQRDelay
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.SweepMaxAge <= 0 {
		cfg.SweepMaxAge = defaultSweepMaxAge
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequest
	}
	switch cfg.Renderer {
	case "wkhtmltopdf", "chromedp":
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
	return cfg, nil
}

// localURL derives the loopback URL the renderer uses to fetch staged pages
// when no public URL is configured.
func localURL(address string) string {
	host, port, ok := strings.Cut(address, ":")
	if !ok {
		return "http://" + address
	}
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + port
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
