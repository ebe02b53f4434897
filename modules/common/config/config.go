package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"muse-stream-server/modules/common/logger"
)

// Config holds every environment-provided value the pipeline consumes.
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Suno (music backend)
	SunoAPIKey string
	SunoAPIURL string
	SunoModel  string

	// Gemini (cover art backend, optional)
	GeminiAPIKey string
	GeminiModel  string

	// Backdrop (looping video backend, optional)
	BackdropAPIKey string
	BackdropAPIURL string

	// Supabase (track archive, optional)
	SupabaseURL        string
	SupabaseServiceKey string

	// Playback controller
	PlaybackAPIURL string

	// Budget
	DailyBudgetUSD float64
	MusicCostUSD   float64
	ImageCostUSD   float64
	VideoCostUSD   float64

	// Poller timing per backend
	MusicPollInterval time.Duration
	MusicMaxWait      time.Duration
	ImagePollInterval time.Duration
	ImageMaxWait      time.Duration
	VideoPollInterval time.Duration
	VideoMaxWait      time.Duration

	// Loop timing
	ChatPollInterval     time.Duration
	PlaybackPollInterval time.Duration
	StatusInterval       time.Duration
	IdleInterval         time.Duration
	AutoGenerateInterval time.Duration // 0 disables idle auto-generation

	// Commands
	CommandPrefix string

	// Server
	Port        string
	AssetsDir   string
	StreamTitle string
}

var globalConfig *Config

// Load reads the .env file (if present) and the environment, validates the
// required values, and returns the assembled configuration. A validation
// failure here is the only error class allowed to stop the process.
func Load() (*Config, error) {
	log := logger.WithComponent("config")

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️  .env file not found, using environment variables")
	}

	globalConfig = &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		SunoAPIKey: getEnv("SUNO_API_KEY", ""),
		SunoAPIURL: getEnv("SUNO_API_URL", "https://api.sunoapi.org/api/v1"),
		SunoModel:  getEnv("SUNO_MODEL", "v3_5"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),

		BackdropAPIKey: getEnv("BACKDROP_API_KEY", ""),
		BackdropAPIURL: getEnv("BACKDROP_API_URL", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),

		PlaybackAPIURL: getEnv("PLAYBACK_API_URL", "http://localhost:4455"),

		DailyBudgetUSD: getEnvFloat("DAILY_BUDGET_USD", 0.60),
		MusicCostUSD:   getEnvFloat("MUSIC_COST_USD", 0.01),
		ImageCostUSD:   getEnvFloat("IMAGE_COST_USD", 0.005),
		VideoCostUSD:   getEnvFloat("VIDEO_COST_USD", 0.02),

		MusicPollInterval: getEnvSeconds("MUSIC_POLL_INTERVAL_SECONDS", 10),
		MusicMaxWait:      getEnvSeconds("MUSIC_MAX_WAIT_SECONDS", 300),
		ImagePollInterval: getEnvSeconds("IMAGE_POLL_INTERVAL_SECONDS", 2),
		ImageMaxWait:      getEnvSeconds("IMAGE_MAX_WAIT_SECONDS", 120),
		VideoPollInterval: getEnvSeconds("VIDEO_POLL_INTERVAL_SECONDS", 10),
		VideoMaxWait:      getEnvSeconds("VIDEO_MAX_WAIT_SECONDS", 300),

		ChatPollInterval:     getEnvSeconds("CHAT_POLL_INTERVAL_SECONDS", 2),
		PlaybackPollInterval: getEnvSeconds("PLAYBACK_POLL_INTERVAL_SECONDS", 5),
		StatusInterval:       getEnvSeconds("STATUS_INTERVAL_SECONDS", 60),
		IdleInterval:         getEnvSeconds("IDLE_INTERVAL_SECONDS", 10),
		AutoGenerateInterval: getEnvSeconds("AUTO_GENERATE_INTERVAL_SECONDS", 0),

		CommandPrefix: getEnv("COMMAND_PREFIX", "!"),

		Port:        getEnv("PORT", "8080"),
		AssetsDir:   getEnv("ASSETS_DIR", "assets"),
		StreamTitle: getEnv("STREAM_TITLE", "AI Music Stream"),
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("redis", globalConfig.RedisAddr()).
		Float64("daily_budget_usd", globalConfig.DailyBudgetUSD).
		Str("command_prefix", globalConfig.CommandPrefix).
		Msg("✅ Configuration loaded successfully")

	return globalConfig, nil
}

// Get returns the loaded configuration. Load must have been called first.
func Get() *Config {
	if globalConfig == nil {
		log := logger.WithComponent("config")
		log.Fatal().Msg("❌ Config not loaded. Call Load() first.")
	}
	return globalConfig
}

func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SunoAPIKey == "" {
		return fmt.Errorf("SUNO_API_KEY is required")
	}
	if c.DailyBudgetUSD <= 0 {
		return fmt.Errorf("DAILY_BUDGET_USD must be positive")
	}
	if c.MusicCostUSD <= 0 {
		return fmt.Errorf("MUSIC_COST_USD must be positive")
	}
	if c.SupabaseURL != "" && c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	return nil
}

// HasCoverArt reports whether the optional cover-art backend is configured.
func (c *Config) HasCoverArt() bool { return c.GeminiAPIKey != "" }

// HasBackdrop reports whether the optional backdrop backend is configured.
func (c *Config) HasBackdrop() bool { return c.BackdropAPIKey != "" && c.BackdropAPIURL != "" }

// HasArchive reports whether the optional Supabase archive is configured.
func (c *Config) HasArchive() bool { return c.SupabaseURL != "" }

// RedisAddr builds the Redis connection string.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	seconds := defaultSeconds
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			seconds = parsed
		}
	}
	return time.Duration(seconds) * time.Second
}
