package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Everything is env-driven so
// main stays lean and deployment stays twelve-factor.
type Server struct {
	Addr          string
	PublicBaseURL string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string
	SessionTTL    time.Duration

	// ReportingKeyHash is the bcrypt hash of the key that guards the
	// network-tree and anonymous-submission reports.
	ReportingKeyHash string

	InviteCodeMaxAttempts int

	BroadcastConcurrency int
	BroadcastSendTimeout time.Duration

	Mailgun Mailgun
	OpenAI  OpenAI

	// ContextDir holds the candidate persona context files.
	ContextDir string

	// DefaultRecipients receive voter responses when a submission carries
	// no email address.
	DefaultRecipients []string

	SecureCookies bool
}

// Mailgun holds outbound mail transport credentials.
type Mailgun struct {
	APIKey  string
	Domain  string
	BaseURL string
	From    string
}

// OpenAI holds response-generation credentials and tuning.
type OpenAI struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	mailgunDomain := os.Getenv("MAILGUN_DOMAIN")
	from := os.Getenv("MAILGUN_FROM")
	if from == "" && mailgunDomain != "" {
		from = "Voter Engagement <noreply@" + mailgunDomain + ">"
	}

	return Server{
		Addr:          envStr("CANVASS_ADDR", ":8080"),
		PublicBaseURL: envStr("CANVASS_PUBLIC_BASE_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KafkaBrokers: envList("KAFKA_BROKERS"),
		AuditTopic:   envStr("AUDIT_TOPIC", "canvass.audit"),

		// Default exists for development only; override in production.
		JWTSigningKey: envStr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),

		ReportingKeyHash: os.Getenv("REPORTING_KEY_HASH"),

		InviteCodeMaxAttempts: envInt("INVITE_CODE_MAX_ATTEMPTS", 10),

		BroadcastConcurrency: envInt("BROADCAST_CONCURRENCY", 8),
		BroadcastSendTimeout: envDuration("BROADCAST_SEND_TIMEOUT", 10*time.Second),

		Mailgun: Mailgun{
			APIKey:  os.Getenv("MAILGUN_API_KEY"),
			Domain:  mailgunDomain,
			BaseURL: envStr("MAILGUN_BASE_URL", "https://api.mailgun.net"),
			From:    from,
		},

		OpenAI: OpenAI{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     envStr("OPENAI_BASE_URL", "https://api.openai.com"),
			Model:       envStr("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:   envInt("OPENAI_MAX_TOKENS", 500),
			Temperature: envFloat("OPENAI_TEMPERATURE", 0.7),
		},

		ContextDir: envStr("CONTEXT_DIR", "context"),

		DefaultRecipients: envListDefault("DEFAULT_RECIPIENTS",
			[]string{"jeffjordan5@proton.me", "VoterEngageBox1@proton.me"}),

		SecureCookies: envBool("SECURE_COOKIES", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	return envListDefault(key, nil)
}

func envListDefault(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
