package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultUserAgent is a desktop Chrome identification string. The platform
// serves a blocked or unrenderable page to the stock headless UA.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultPlatformBaseURL is the production procurement platform.
const DefaultPlatformBaseURL = "https://www.mercadopublico.cl"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Platform  PlatformConfig
	Admission AdmissionConfig
	Auth      AuthConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds how long in-flight requests may drain.
	ShutdownTimeout time.Duration // default: 35s
}

// BrowserConfig controls the Chromium process launched per request.
type BrowserConfig struct {
	// Headless controls whether the browser runs without a display surface.
	Headless bool // default: true

	// NoSandbox adds --no-sandbox and --disable-setuid-sandbox (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path. Empty means auto-detect or download.
	BrowserBin string

	// UserAgent is sent on every navigation.
	UserAgent string

	// AcceptLanguage, when set, is injected as an extra request header.
	AcceptLanguage string

	// Stealth injects go-rod/stealth evasions before navigation.
	Stealth bool // default: false

	// BlockedResources lists resource types failed before they hit the
	// network: "Image", "Stylesheet", "Font", "Media". Empty blocks nothing.
	BlockedResources []string

	// BlockTrackers fails requests to known analytics and ad hosts.
	BlockTrackers bool // default: false
}

// RenderConfig controls the network-idle wait policy.
type RenderConfig struct {
	// NavigationTimeout is the hard ceiling for one navigation + idle wait.
	NavigationTimeout time.Duration // default: 30s

	// IdleWindow is how long the in-flight count must stay at or below
	// IdleMaxInflight before the page counts as settled.
	IdleWindow time.Duration // default: 500ms

	// IdleMaxInflight is the number of open requests tolerated while idle.
	IdleMaxInflight int // default: 2
}

// PlatformConfig describes the procurement platform download endpoint.
type PlatformConfig struct {
	// BaseURL is scheme + host used to build download links.
	BaseURL string // default: https://www.mercadopublico.cl
}

// AdmissionConfig bounds concurrent browser sessions.
type AdmissionConfig struct {
	// MaxSessions caps concurrent Chromium processes. 0 disables the cap.
	MaxSessions int // default: 0
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// APIKeys is the list of valid API keys. Empty disables authentication.
	APIKeys []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// Values from ENV_FILE, or .env.local and .env, are loaded first; variables
// already present in the environment always win.
func Load() *Config {
	if err := loadEnvFiles(); err != nil {
		slog.Warn("config: env file not loaded", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:            envOr("HOST", "0.0.0.0"),
			Port:            envIntOr("PORT", 8000),
			Mode:            envOr("SCRAPER_MODE", "release"),
			ShutdownTimeout: envDurationOr("SCRAPER_SHUTDOWN_TIMEOUT", 35*time.Second),
		},
		Browser: BrowserConfig{
			Headless:         envBoolOr("SCRAPER_HEADLESS", true),
			NoSandbox:        envBoolOr("SCRAPER_NO_SANDBOX", true),
			BrowserBin:       os.Getenv("SCRAPER_BROWSER_BIN"),
			UserAgent:        envOr("SCRAPER_USER_AGENT", DefaultUserAgent),
			AcceptLanguage:   os.Getenv("SCRAPER_ACCEPT_LANGUAGE"),
			Stealth:          envBoolOr("SCRAPER_STEALTH", false),
			BlockedResources: envSliceOr("SCRAPER_BLOCK_RESOURCES", nil),
			BlockTrackers:    envBoolOr("SCRAPER_BLOCK_TRACKERS", false),
		},
		Render: RenderConfig{
			NavigationTimeout: envDurationOr("SCRAPER_NAV_TIMEOUT", 30*time.Second),
			IdleWindow:        envDurationOr("SCRAPER_IDLE_WINDOW", 500*time.Millisecond),
			IdleMaxInflight:   envIntOr("SCRAPER_IDLE_MAX_INFLIGHT", 2),
		},
		Platform: PlatformConfig{
			BaseURL: strings.TrimRight(envOr("SCRAPER_PLATFORM_BASE_URL", DefaultPlatformBaseURL), "/"),
		},
		Admission: AdmissionConfig{
			MaxSessions: envIntOr("SCRAPER_MAX_SESSIONS", 0),
		},
		Auth: AuthConfig{
			APIKeys: envSliceOr("SCRAPER_API_KEYS", nil),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPER_LOG_LEVEL", "info"),
			Format: envOr("SCRAPER_LOG_FORMAT", "json"),
		},
	}
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// Missing files are not an error.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
