package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	LogFile            string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// LLM Configuration
	LLMProvider         string
	LLMFallbackProvider string
	LLMTimeout          time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	PersonaFile         string
	MaxHistoryMessages  int

	// Conversation policy
	MaxMessages        int
	MinSummaryMessages int
	IdleTimeout        time.Duration
	StateTTL           time.Duration
	SessionIdle        time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool

	// Email Configuration
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	LeadRecapEnabled  bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		LogFile:            getEnv("LOG_FILE", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		// LLM Configuration
		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 25*time.Second),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		PersonaFile:         getEnv("PERSONA_FILE", ""),
		MaxHistoryMessages:  getEnvAsInt("MAX_HISTORY_MESSAGES", 20),

		// Conversation policy
		MaxMessages:        getEnvAsInt("MAX_MESSAGES", 30),
		MinSummaryMessages: getEnvAsInt("MIN_SUMMARY_MESSAGES", 10),
		IdleTimeout:        getEnvAsDuration("IDLE_TIMEOUT", 10*time.Minute),
		StateTTL:           getEnvAsDuration("STATE_TTL", 24*time.Hour),
		SessionIdle:        getEnvAsDuration("WEBCHAT_SESSION_IDLE", 30*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),

		// Email Configuration
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "widget@aisync101.com"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AI Discovery Widget"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", "widget@aisync101.com"),
		SESFromName:       getEnv("SES_FROM_NAME", "AI Discovery Widget"),
		LeadRecapEnabled:  getEnvAsBool("LEAD_RECAP_ENABLED", false),
	}
}

// TeamEmail returns the summary recipient. It is read on every call so a
// rotated address takes effect without a restart.
func TeamEmail() string {
	return getEnv("TEAM_EMAIL", "team@aisync101.com")
}

// WidgetConfig configures the terminal widget client.
type WidgetConfig struct {
	APIEndpoint     string
	TrackerEndpoint string
	StateFile       string
	PageURL         string
	LogLevel        string
	LogFile         string
	RequestTimeout  time.Duration
	MaxMessages     int
	MinMessages     int
	IdleTimeout     time.Duration
	StateTTL        time.Duration
	PersonaFile     string
}

// LoadWidget reads the widget client configuration from environment variables.
func LoadWidget() *WidgetConfig {
	return &WidgetConfig{
		APIEndpoint:     getEnv("WIDGET_API_ENDPOINT", "http://localhost:8080/api/chat"),
		TrackerEndpoint: getEnv("WIDGET_TRACKER_ENDPOINT", "http://localhost:8080/api/conversation-complete"),
		StateFile:       getEnv("WIDGET_STATE_FILE", defaultStateFile()),
		PageURL:         getEnv("WIDGET_PAGE_URL", "cli://discovery-widget"),
		LogLevel:        getEnv("LOG_LEVEL", "warn"),
		LogFile:         getEnv("LOG_FILE", ""),
		RequestTimeout:  getEnvAsDuration("WIDGET_REQUEST_TIMEOUT", 30*time.Second),
		MaxMessages:     getEnvAsInt("MAX_MESSAGES", 30),
		MinMessages:     getEnvAsInt("MIN_SUMMARY_MESSAGES", 10),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 10*time.Minute),
		StateTTL:        getEnvAsDuration("STATE_TTL", 24*time.Hour),
		PersonaFile:     getEnv("PERSONA_FILE", ""),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "aisync_conversation.json"
	}
	return dir + string(os.PathSeparator) + "discovery-widget" + string(os.PathSeparator) + "aisync_conversation.json"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
