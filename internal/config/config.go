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
	CORSAllowedOrigins []string
	OwnerEmail         string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scene analysis
	AnalysisProvider string
	GeminiAPIKey     string
	GeminiModelID    string
	BedrockModelID   string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EvidenceBucket      string
	SESFromEmail        string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Community broadcast
	NATSURL              string
	NATSBroadcastSubject string
	BroadcastTimeout     time.Duration

	// Capture session timings
	CaptureInterval            time.Duration
	PowerButtonCaptureInterval time.Duration
	CountdownDuration          time.Duration
	AuthWindow                 time.Duration
	AnalysisTimeout            time.Duration
	MotionDebounce             time.Duration

	// Simulated collaborator latency
	UploadLatency    time.Duration
	BroadcastLatency time.Duration

	// Upload queue
	UploadMaxAttempts    int
	UploadRetryBaseDelay time.Duration

	// Vault
	VaultLockout   time.Duration
	VaultRateLimit float64
	VaultRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		OwnerEmail:         getEnv("OWNER_EMAIL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AnalysisProvider: strings.ToLower(strings.TrimSpace(getEnv("ANALYSIS_PROVIDER", "gemini"))),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EvidenceBucket:      getEnv("EVIDENCE_BUCKET", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "GuardianAI"),

		NATSURL:              getEnv("NATS_URL", ""),
		NATSBroadcastSubject: getEnv("NATS_BROADCAST_SUBJECT", "guardian.community.broadcast"),
		BroadcastTimeout:     getEnvAsDuration("BROADCAST_TIMEOUT", 3*time.Second),

		CaptureInterval:            getEnvAsDuration("CAPTURE_INTERVAL", 4*time.Second),
		PowerButtonCaptureInterval: getEnvAsDuration("POWER_BUTTON_CAPTURE_INTERVAL", 300*time.Millisecond),
		CountdownDuration:          getEnvAsDuration("COUNTDOWN_DURATION", 5*time.Second),
		AuthWindow:                 getEnvAsDuration("AUTH_WINDOW", 5*time.Second),
		AnalysisTimeout:            getEnvAsDuration("ANALYSIS_TIMEOUT", 20*time.Second),
		MotionDebounce:             getEnvAsDuration("MOTION_DEBOUNCE", 2*time.Second),

		UploadLatency:    getEnvAsDuration("UPLOAD_LATENCY", 1500*time.Millisecond),
		BroadcastLatency: getEnvAsDuration("BROADCAST_LATENCY", 1500*time.Millisecond),

		UploadMaxAttempts:    getEnvAsInt("UPLOAD_MAX_ATTEMPTS", 3),
		UploadRetryBaseDelay: getEnvAsDuration("UPLOAD_RETRY_BASE_DELAY", 500*time.Millisecond),

		VaultLockout:   getEnvAsDuration("VAULT_LOCKOUT", 5*time.Minute),
		VaultRateLimit: getEnvAsFloat("VAULT_RATE_LIMIT", 1),
		VaultRateBurst: getEnvAsInt("VAULT_RATE_BURST", 5),
	}
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

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
