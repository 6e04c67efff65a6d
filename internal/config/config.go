package config

import (
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret      string
	AdminUser       string
	AdminPassHash   string // bcrypt
	EnableGuestAuth bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Question-generation workflow webhook
	GenWebhookURL     string
	GenAPIKey         string
	GenTimeoutSeconds int

	// Quiz defaults; per-lecture pass thresholds may override the
	// threshold, never below the grading floor.
	QuizSeconds       int
	QuizQuestionCount int
	PassThreshold     float64
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthSecret:      envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", ""),
		EnableGuestAuth: envBool("ENABLE_GUEST_AUTH", true),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://app.lumalearn.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),

		GenWebhookURL:     os.Getenv("GEN_WEBHOOK_URL"),
		GenAPIKey:         os.Getenv("GEN_API_KEY"),
		GenTimeoutSeconds: envInt("GEN_TIMEOUT_SECONDS", 60),

		QuizSeconds:       envInt("QUIZ_SECONDS", 600),
		QuizQuestionCount: envInt("QUIZ_QUESTION_COUNT", 5),
		PassThreshold:     envFloat("PASS_THRESHOLD", 0.8),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
