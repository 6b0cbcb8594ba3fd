package main

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the site reads from the environment.
// A .env file is honored via godotenv's autoload import in main.go.
type Config struct {
	Env    string
	Port   string
	DBPath string

	// Sending identity and recipient for relayed contact messages.
	// ContactTo falls back to ContactFrom when unset; a missing
	// ContactFrom is a misconfiguration surfaced at relay time, not
	// at boot, so the rest of the site still serves.
	ContactFrom     string
	ContactFromName string
	ContactTo       string

	// Outbound provider credentials. An API key selects the Brevo
	// sender; otherwise SMTP credentials select go-mail; otherwise
	// submissions are logged only.
	BrevoAPIKey string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string

	// Where the live page channel submits contact drafts. Defaults to
	// this process's own relay endpoint.
	ContactEndpoint string

	AdminUsername string
	AdminPassword string

	CORSOrigins []string

	// Contact endpoint rate limit, per client IP.
	ContactRatePerMin float64
	ContactRateBurst  int

	// Visitor rows older than this many days are purged.
	VisitorRetentionDays int
}

// LoadConfig reads the environment with development-friendly fallbacks.
func LoadConfig() *Config {
	port := getEnv("PORT", "8080")

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		Port:                 port,
		DBPath:               getEnv("DB_PATH", "voss.db"),
		ContactFrom:          getEnv("CONTACT_FROM", ""),
		ContactFromName:      getEnv("CONTACT_FROM_NAME", "voss.dev contact form"),
		ContactTo:            getEnv("CONTACT_TO", ""),
		BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPass:             getEnv("SMTP_PASS", ""),
		ContactEndpoint:      getEnv("CONTACT_ENDPOINT", "http://127.0.0.1:"+port+"/api/contact"),
		AdminUsername:        getEnv("ADMIN_USERNAME", ""),
		AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		CORSOrigins:          splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		ContactRatePerMin:    getEnvFloat("CONTACT_RATE_PER_MINUTE", 5),
		ContactRateBurst:     getEnvInt("CONTACT_RATE_BURST", 5),
		VisitorRetentionDays: getEnvInt("VISITOR_RETENTION_DAYS", 365),
	}

	// The recipient defaults to the sending identity.
	if cfg.ContactTo == "" {
		cfg.ContactTo = cfg.ContactFrom
	}

	return cfg
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// IsDev reports whether the site runs in development mode.
func (c *Config) IsDev() bool {
	return !strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %g", key, val, fallback)
		return fallback
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
