package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Logging       LoggingConfig
	Security      SecurityConfig
	Kafka         KafkaConfig
	Websocket     WebsocketConfig
	Notifications NotificationsConfig
	Reminders     RemindersConfig
	Audit         AuditConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Directory string
	Level     string
	Format    string
}

type SecurityConfig struct {
	JWTSecret    string
	JWTPublicKey string
	// ServiceToken authorises POST /api/events for backend integrations.
	ServiceToken string
}

type KafkaConfig struct {
	Brokers      []string
	GroupID      string
	Topics       []string
	PublishTopic string
}

// Enabled reports whether a broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type WebsocketConfig struct {
	SendBuffer int
}

type NotificationsConfig struct {
	Capacity         int
	SessionRetention time.Duration
}

type RemindersConfig struct {
	AppointmentInterval time.Duration
	MedicationInterval  time.Duration
	CatchUp             time.Duration
	ScheduleFile        string
	ScheduleBaseURL     string
	ScheduleToken       string
	Timeout             time.Duration
}

type AuditConfig struct {
	// DatabasePath empty keeps the audit trail in memory only.
	DatabasePath string
}

// Load lee la configuración del entorno. El .env ya fue aplicado por el main.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Logging: LoggingConfig{
			Directory: getEnv("LOG_DIRECTORY", "./logs"),
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "text"),
		},
		Security: SecurityConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			JWTPublicKey: strings.ReplaceAll(os.Getenv("JWT_PUBLIC_KEY"), `\n`, "\n"),
			ServiceToken: os.Getenv("SERVICE_TOKEN"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(firstNonEmpty(os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_BROKER"))),
			GroupID:      getEnv("KAFKA_GROUP_ID", "carelink-ws"),
			Topics:       splitList(getEnv("KAFKA_TOPICS", "carelink.events")),
			PublishTopic: getEnv("KAFKA_PUBLISH_TOPIC", "carelink.events"),
		},
		Websocket: WebsocketConfig{
			SendBuffer: getInt("WS_SEND_BUFFER", 16, &errs),
		},
		Notifications: NotificationsConfig{
			Capacity:         getInt("NOTIFICATIONS_CAPACITY", 200, &errs),
			SessionRetention: getDuration("SESSION_RETENTION", 15*time.Minute, &errs),
		},
		Reminders: RemindersConfig{
			AppointmentInterval: getDuration("REMINDERS_APPOINTMENT_INTERVAL", time.Hour, &errs),
			MedicationInterval:  getDuration("REMINDERS_MEDICATION_INTERVAL", time.Minute, &errs),
			CatchUp:             getDuration("REMINDERS_CATCH_UP", 10*time.Minute, &errs),
			ScheduleFile:        os.Getenv("REMINDERS_SCHEDULE_FILE"),
			ScheduleBaseURL:     strings.TrimRight(os.Getenv("REMINDERS_SCHEDULE_BASE_URL"), "/"),
			ScheduleToken:       os.Getenv("REMINDERS_SCHEDULE_TOKEN"),
			Timeout:             getDuration("REMINDERS_TIMEOUT", 10*time.Second, &errs),
		},
		Audit: AuditConfig{
			DatabasePath: os.Getenv("AUDIT_DATABASE_PATH"),
		},
	}

	if cfg.Security.JWTSecret == "" && cfg.Security.JWTPublicKey == "" {
		errs = append(errs, errors.New("JWT_SECRET or JWT_PUBLIC_KEY is required"))
	}
	if cfg.Reminders.ScheduleFile != "" && cfg.Reminders.ScheduleBaseURL != "" {
		errs = append(errs, errors.New("REMINDERS_SCHEDULE_FILE and REMINDERS_SCHEDULE_BASE_URL are mutually exclusive"))
	}
	if cfg.Kafka.Enabled() && !slices.Contains(cfg.Kafka.Topics, cfg.Kafka.PublishTopic) {
		errs = append(errs, fmt.Errorf("KAFKA_PUBLISH_TOPIC %q is not among KAFKA_TOPICS %v", cfg.Kafka.PublishTopic, cfg.Kafka.Topics))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, raw))
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("90s", "15m") or bare seconds.
func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", key, raw))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
