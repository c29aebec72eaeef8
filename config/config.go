package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fixed limits. These are not read from the environment.
const (
	// MaxFileSizeMB caps a single extracted audio file.
	MaxFileSizeMB = 100
	// MaxFileSizeBytes is MaxFileSizeMB in bytes.
	MaxFileSizeBytes int64 = MaxFileSizeMB * 1024 * 1024
	// RetentionWindow is how long a stored file lives before the sweeper removes it.
	RetentionWindow = 24 * time.Hour
	// SweepInterval is the pause between two sweeps.
	SweepInterval = time.Hour
	// ConvertRateLimit is the number of POST /convert calls per client per RateWindow.
	ConvertRateLimit = 5
	// DownloadRateLimit is the number of GET /download calls per client per RateWindow.
	DownloadRateLimit = 30
	// RateWindow is the rate limiting window.
	RateWindow = time.Minute
	// AudioExtension is the only extension ever written to or served from storage.
	AudioExtension = ".mp3"
)

// DefaultAllowedOrigins mirrors the local development frontends.
const DefaultAllowedOrigins = "http://localhost:3000,http://localhost:*,http://127.0.0.1:*"

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Extractor ExtractorConfig
	Worker    WorkerConfig
	Redis     RedisConfig
	AWS       AWSConfig
	LogLevel  string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string   // comma-separated, "*" for all, "scheme://host:*" matches any port
	TrustedProxies     []string // IPs/CIDRs allowed to set X-Forwarded-For; empty means use the peer address
}

// StorageConfig holds the local audio directory.
type StorageConfig struct {
	DownloadDir string
}

// ExtractorConfig holds yt-dlp settings.
type ExtractorConfig struct {
	Binary      string
	CookiesFile string // optional; passed as --cookies
}

// WorkerConfig holds background extraction settings.
type WorkerConfig struct {
	Count     int
	QueueSize int
	Embedded  bool // server also consumes the Redis queue
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AWSConfig holds AWS credentials and the archive bucket. Empty ArchiveBucket disables archiving.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ArchiveBucket   string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 300),
			CORSAllowedOrigins: getEnv("ALLOWED_ORIGINS", DefaultAllowedOrigins),
			TrustedProxies:     splitTrim(getEnv("TRUSTED_PROXIES", ""), ","),
		},
		Storage: StorageConfig{
			DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		},
		Extractor: ExtractorConfig{
			Binary:      getEnv("YTDLP_BINARY", "yt-dlp"),
			CookiesFile: getEnv("YTDLP_COOKIES_FILE", ""),
		},
		Worker: WorkerConfig{
			Count:     getEnvInt("WORKER_COUNT", 2),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 64),
			Embedded:  getEnvBool("WORKER_EMBEDDED", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:   getEnv("AWS_S3_ARCHIVE_BUCKET", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if cfg.Worker.Count < 1 {
		cfg.Worker.Count = 1
	}
	if cfg.Worker.QueueSize < 1 {
		cfg.Worker.QueueSize = 1
	}
	return cfg, nil
}

// SplitOrigins returns the trimmed, non-empty entries of a comma-separated origin list.
func SplitOrigins(s string) []string {
	return splitTrim(s, ",")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
