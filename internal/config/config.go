package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/push"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBPath    string `envconfig:"DB_PATH" default:"./data/digest.db"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Push is disabled unless both VAPID keys are set.
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:admin@example.com"`

	DigestTZ           string        `envconfig:"DIGEST_TZ" default:"+09:00"` // offset or IANA name
	DigestSize         int           `envconfig:"DIGEST_SIZE" default:"3"`
	MatchWindowMinutes int           `envconfig:"MATCH_WINDOW_MINUTES" default:"0"`
	PushTimeout        time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
	PushTTL            int           `envconfig:"PUSH_TTL" default:"3600"` // seconds
	UserConcurrency    int           `envconfig:"PUSH_USER_CONCURRENCY" default:"4"`
	DeviceConcurrency  int           `envconfig:"PUSH_DEVICE_CONCURRENCY" default:"4"`

	NotificationIcon string `envconfig:"NOTIFICATION_ICON" default:"/icons/icon-192x192.png"`
	NotificationURL  string `envconfig:"NOTIFICATION_URL" default:"/"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	// Operator alerts are sent only when both are set.
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatID int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`
}

// Load reads an optional .env file and then environment variables into Config.
// Variables already present in the environment win over .env entries.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv paths. Missing files are ignored.
func LoadFiles(paths ...string) (Config, error) {
	var cfg Config
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", p, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if _, err := domain.ParseZone(c.DigestTZ); err != nil {
		errs = append(errs, fmt.Errorf("DIGEST_TZ: %w", err))
	}
	if c.DigestSize < 1 {
		errs = append(errs, fmt.Errorf("DIGEST_SIZE must be positive, got %d", c.DigestSize))
	}
	if c.MatchWindowMinutes < 0 {
		errs = append(errs, fmt.Errorf("MATCH_WINDOW_MINUTES must not be negative, got %d", c.MatchWindowMinutes))
	}
	if c.PushTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PUSH_TIMEOUT must be positive, got %s", c.PushTimeout))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// Zone returns the digest time zone.
func (c Config) Zone() domain.Zone {
	z, err := domain.ParseZone(c.DigestTZ)
	if err != nil {
		return domain.DefaultZone()
	}
	return z
}

// VAPID returns the Web Push key pair.
func (c Config) VAPID() push.VAPID {
	return push.VAPID{PublicKey: c.VAPIDPublicKey, PrivateKey: c.VAPIDPrivateKey, Subject: c.VAPIDSubject}
}

// AlertsEnabled reports whether Telegram operator alerts are configured.
func (c Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAlertChatID != 0
}
