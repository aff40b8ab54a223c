package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAutoReplyTemplate is rendered with {department} replaced by the primary category.
// Gemini defaults apply when GEMINI_API_KEY is the only key set.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	GeminiModel   = "gemini-2.5-flash-lite"
)

const DefaultAutoReplyTemplate = `Hello,

Thank you for contacting us. Your email has been received and automatically routed to our {department} department.

Our team will review your message and respond as soon as possible.

Best regards,
Emailia Auto-Routing System
`

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// JWT (empty disables API auth)
	JWTSecret string

	// EncryptionKey seals stored OAuth tokens (empty stores them as-is)
	EncryptionKey string

	// LLM (OpenAI-compatible endpoint)
	LLMAPIKey      string
	LLMModel       string
	LLMBaseURL     string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Rate gate and retry
	LLMMinInterval  time.Duration
	LLMWindowLimit  int
	LLMWindow       time.Duration
	LLMQuotaBackoff time.Duration
	LLMParseBackoff time.Duration
	LLMMaxAttempts  int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string

	// Routing
	ConfidenceThreshold float64
	TeamLeadEmail       string
	TeamMembers         string
	TeamRosterFile      string
	AutoReplyTemplate   string
	AutoReplyEnabled    bool
	AutoForward         bool

	// Poller
	PollInterval   time.Duration
	PollMaxResults int
	WorkerPoolSize int

	// CORS
	AllowedOrigins []string

	// APIRateLimit caps classification-spending requests per caller per minute
	APIRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "triage"),

		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncryptionKey: firstEnv("ENCRYPTION_KEY", "JWT_SECRET"),

		LLMAPIKey:      firstEnv("LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		LLMMinInterval:  getEnvDuration("LLM_MIN_INTERVAL", 6*time.Second),
		LLMWindowLimit:  getEnvInt("LLM_WINDOW_LIMIT", 9),
		LLMWindow:       getEnvDuration("LLM_WINDOW", 60*time.Second),
		LLMQuotaBackoff: getEnvDuration("LLM_QUOTA_BACKOFF", 10*time.Second),
		LLMParseBackoff: getEnvDuration("LLM_PARSE_BACKOFF", 3*time.Second),
		LLMMaxAttempts:  getEnvInt("LLM_MAX_ATTEMPTS", 2),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  firstEnv("GOOGLE_REDIRECT_URL", "GOOGLE_REDIRECT_URI"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),

		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.7),
		TeamLeadEmail:       getEnv("TEAM_LEAD_EMAIL", ""),
		TeamMembers:         getEnv("TEAM_MEMBERS", ""),
		TeamRosterFile:      getEnv("TEAM_ROSTER_FILE", ""),
		AutoReplyTemplate:   getEnv("AUTO_REPLY_TEMPLATE", DefaultAutoReplyTemplate),
		AutoReplyEnabled:    getEnvBool("AUTO_REPLY_ENABLED", true),
		AutoForward:         getEnvBool("AUTO_FORWARD", false),

		PollInterval:   getEnvDuration("POLL_INTERVAL", 0),
		PollMaxResults: getEnvInt("POLL_MAX_RESULTS", 10),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 2),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		APIRateLimit:   getEnvInt("API_RATE_LIMIT", 30),
	}
	cfg.applyGeminiDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyGeminiDefaults points the client at Gemini's OpenAI-compatible route
// unless the operator set the endpoint or model explicitly.
func (c *Config) applyGeminiDefaults() {
	if firstEnv("LLM_API_KEY", "OPENAI_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") == "" {
		return
	}
	if os.Getenv("LLM_BASE_URL") == "" {
		c.LLMBaseURL = GeminiBaseURL
	}
	if os.Getenv("LLM_MODEL") == "" {
		c.LLMModel = GeminiModel
	}
}

// Validate checks value ranges. Missing backing services are allowed; bootstrap decides per mode.
func (c *Config) Validate() error {
	var problems []string
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		problems = append(problems, "CONFIDENCE_THRESHOLD must be within [0,1]")
	}
	if c.LLMWindowLimit < 1 {
		problems = append(problems, "LLM_WINDOW_LIMIT must be at least 1")
	}
	if c.LLMMaxAttempts < 1 {
		problems = append(problems, "LLM_MAX_ATTEMPTS must be at least 1")
	}
	if c.LLMMinInterval < 0 || c.LLMWindow <= 0 {
		problems = append(problems, "LLM_MIN_INTERVAL and LLM_WINDOW must be positive")
	}
	if c.PollMaxResults < 1 {
		problems = append(problems, "POLL_MAX_RESULTS must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireAPI lists settings the HTTP mode cannot start without.
func (c *Config) RequireAPI() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("6s", "1m") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
