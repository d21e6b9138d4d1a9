package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	JWTSecret       string        // JWT署名シークレット
	AccessTokenTTL  time.Duration // アクセストークン（15m）
	RefreshTokenTTL time.Duration // リフレッシュトークン（14日）
	CookieSecure    bool

	GoEnv    string // dev/prod
	LogLevel string
	FEURL    string // フロントURL（CORSなどで使う）
	SiteURL  string // メール内のリンク

	GuestCartTTL        time.Duration // 放置された匿名カートを消すまで（1日）
	CartCleanupInterval time.Duration
	SearchCacheTTL      time.Duration // 検索結果キャッシュ（5分）

	DB   DatabaseConfig
	SMTP SMTPConfig

	CloudinaryURL string // 空ならアップロード不可
}

type DatabaseConfig struct {
	Driver     string // postgres / sqlite
	URL        string // DATABASE_URLがあれば個別設定より優先
	SQLitePath string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type SMTPConfig struct {
	Host     string // 空ならメールはログに出すだけ
	Port     int
	User     string
	Password string
	From     string
}

// Loadは環境変数
func Load() (Config, error) {
	smtpPort, err := atoiDefault("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	maxConns, err := atoiDefault("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		CookieSecure: boolDefault("COOKIE_SECURE", true),

		GoEnv:    os.Getenv("GO_ENV"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		FEURL:    os.Getenv("FE_URL"),
		SiteURL:  os.Getenv("SITE_URL"),

		DB: DatabaseConfig{
			Driver:       strDefault("DB_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			SQLitePath:   strDefault("SQLITE_PATH", "bookstore.db"),
			Host:         strDefault("POSTGRES_HOST", "localhost"),
			Port:         strDefault("POSTGRES_PORT", "5432"),
			User:         strDefault("POSTGRES_USER", "postgres"),
			Password:     strDefault("POSTGRES_PASSWORD", "postgres"),
			Name:         strDefault("POSTGRES_DB", "bookstore"),
			SSLMode:      strDefault("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: maxConns,
		},

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},

		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", 15 * time.Minute, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", 14 * 24 * time.Hour, &cfg.RefreshTokenTTL},
		{"GUEST_CART_TTL", 24 * time.Hour, &cfg.GuestCartTTL},
		{"CART_CLEANUP_INTERVAL", time.Hour, &cfg.CartCleanupInterval},
		{"SEARCH_CACHE_TTL", 5 * time.Minute, &cfg.SearchCacheTTL},
		{"DB_CONN_MAX_LIFETIME", 30 * time.Minute, &cfg.DB.ConnMaxLifetime},
	}
	for _, d := range durations {
		v, err := durationDefault(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.FEURL == "" {
		return Config{}, fmt.Errorf("FE_URL is required")
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = cfg.FEURL
	}
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite")
	}

	return cfg, nil
}

func strDefault(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func boolDefault(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}
