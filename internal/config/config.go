package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds relay + extraction settings.
// Load from env; call LoadEnvFile(".env") first to use a .env file.
type Config struct {
	// Metadata API (search / trending / video details)
	APIKey     string // YOUTUBE_API_KEY; metadata endpoints return 500 without it
	RegionCode string // default region for trending, e.g. "ID"

	// Server
	Port        int
	Environment string // deployment label shown in the health payload

	// Extraction
	YtDlpPath      string        // absolute path to the yt-dlp binary
	CookiesPath    string        // operator-uploaded Netscape cookie export; read-only
	PotProviderURL string        // proof-of-origin token sidecar base URL
	ExtractTimeout time.Duration // wall clock cap per yt-dlp invocation
	PotTimeout     time.Duration // liveness probe budget for the PoT sidecar

	// Stream endpoint rate limit: each request may cost a 60s subprocess, so
	// over-limit callers get 429 instead of stacking extractions.
	StreamRateEvery time.Duration
	StreamRateBurst int
}

// Load reads config from environment with defaults matching the deployed service.
func Load() *Config {
	c := &Config{
		APIKey:          os.Getenv("YOUTUBE_API_KEY"),
		RegionCode:      getEnv("YOUTUBE_REGION_CODE", "ID"),
		Port:            getEnvInt("PORT", 3000),
		Environment:     getEnv("TUBERELAY_ENV", "production"),
		YtDlpPath:       getEnv("TUBERELAY_YTDLP_PATH", "/opt/venv/bin/yt-dlp"),
		CookiesPath:     getEnv("TUBERELAY_COOKIES_PATH", "./cookies.txt"),
		PotProviderURL:  getEnv("POT_PROVIDER_URL", "http://pot-provider:4416"),
		ExtractTimeout:  getEnvDuration("TUBERELAY_EXTRACT_TIMEOUT", 60*time.Second),
		PotTimeout:      getEnvDuration("TUBERELAY_POT_TIMEOUT", 3*time.Second),
		StreamRateEvery: getEnvDuration("TUBERELAY_STREAM_RATE_EVERY", 2*time.Second),
		StreamRateBurst: getEnvInt("TUBERELAY_STREAM_RATE_BURST", 3),
	}
	if c.Port <= 0 {
		c.Port = 3000
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 60 * time.Second
	}
	if c.PotTimeout <= 0 {
		c.PotTimeout = 3 * time.Second
	}
	if c.StreamRateBurst <= 0 {
		c.StreamRateBurst = 3
	}
	return c
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LoadEnvFile reads path and sets environment variables for each line "KEY=value".
// Skips empty lines and lines starting with #. Use for .env (keep .env out of git).
// Path is cleaned with filepath.Clean to avoid traversal if path is user-influenced.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		value = unquoteEnv(value)
		os.Setenv(key, value)
	}
	return sc.Err()
}

func unquoteEnv(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
