// Package config загружает конфигурацию движка репутации из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/reputation-engine/internal/features/karma"
)

// Бэкенды хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Режимы проверки DAO
const (
	DaoGatingOverride = "override"
	DaoGatingAll      = "all"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Storage ---
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"postgres"`

	// --- Database ---
	// Дефолт "postgres" — имя сервиса в docker-compose, для локалки переопредели DB_HOST=localhost.
	DBHost           string        `envconfig:"DB_HOST" default:"postgres"`
	DBPort           int           `envconfig:"DB_PORT" default:"5432"`
	DBUser           string        `envconfig:"DB_USER" default:"karma"`
	DBPassword       string        `envconfig:"DB_PASSWORD"`
	DBName           string        `envconfig:"DB_NAME" default:"reputation"`
	DBSSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns       int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Owners ---
	OwnerIDsRaw       string        `envconfig:"OWNER_IDS" required:"true"`
	OwnerIDs          []string      `envconfig:"-"` // заполним вручную
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`
	AdminMaxAttempts  int           `envconfig:"ADMIN_MAX_ATTEMPTS" default:"3"`

	// --- Karma ---
	// Начальные веса (из 10000), используются пока веса не сохранены в хранилище.
	WeightCode       uint32 `envconfig:"WEIGHT_CODE" default:"4000"`
	WeightGovernance uint32 `envconfig:"WEIGHT_GOVERNANCE" default:"3000"`
	WeightForum      uint32 `envconfig:"WEIGHT_FORUM" default:"2000"`
	WeightIdentity   uint32 `envconfig:"WEIGHT_IDENTITY" default:"1000"`

	KarmaNormalization uint64 `envconfig:"KARMA_NORMALIZATION" default:"4"`

	// Параметры доверия в базисных пунктах (из 10000)
	TrustVerifiedBonus uint32 `envconfig:"TRUST_VERIFIED_BONUS" default:"4000"`
	TrustActivityStep  uint32 `envconfig:"TRUST_ACTIVITY_STEP" default:"1500"`
	TrustActivityCap   uint32 `envconfig:"TRUST_ACTIVITY_CAP" default:"6000"`

	// --- Access ---
	DaoGatingMode string `envconfig:"DAO_GATING_MODE" default:"override"`

	// --- Jobs ---
	JobRecalcSpec      string `envconfig:"JOB_RECALC_SPEC" default:"@every 15m"`
	JobPermissionsSpec string `envconfig:"JOB_PERMISSIONS_SPEC" default:"0 3 * * *"`
	JobWorkers         int    `envconfig:"JOB_WORKERS" default:"8"`

	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// Чат для аудита событий, 0 — уведомления выключены
	AuditChatID int64 `envconfig:"AUDIT_CHAT_ID" default:"0"`
	// Сколько апдейтов обрабатываем параллельно
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureBotEnabled  bool `envconfig:"FEATURE_BOT_ENABLED" default:"true"`
	FeatureJobsEnabled bool `envconfig:"FEATURE_JOBS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
// Логин и пароль экранируются.
func (c *Config) DatabaseDSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return dsn.String()
}

// BotEnabled сообщает, нужно ли поднимать Telegram-бота.
func (c *Config) BotEnabled() bool {
	return c.FeatureBotEnabled && c.TelegramBotToken != ""
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StoragePostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORAGE_BACKEND=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("неизвестный STORAGE_BACKEND %q", c.StorageBackend)
	}
	if len(c.OwnerIDs) == 0 {
		return fmt.Errorf("OWNER_IDS пуст")
	}
	if c.AdminMaxAttempts <= 0 {
		return fmt.Errorf("ADMIN_MAX_ATTEMPTS должен быть > 0")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL должен быть > 0")
	}
	if c.KarmaNormalization == 0 || c.KarmaNormalization > karma.MaxNormalization {
		return fmt.Errorf("KARMA_NORMALIZATION должен быть в диапазоне 1..%d", karma.MaxNormalization)
	}
	if c.DaoGatingMode != DaoGatingOverride && c.DaoGatingMode != DaoGatingAll {
		return fmt.Errorf("DAO_GATING_MODE должен быть %q или %q", DaoGatingOverride, DaoGatingAll)
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS должен быть > 0")
	}
	if c.BotEnabled() {
		if c.BotMaxInflight <= 0 {
			return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
		}
		if c.BotUpdateTimeoutSeconds <= 0 {
			return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
		}
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.OwnerIDs = parseCSV(cfg.OwnerIDsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
