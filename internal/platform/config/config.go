package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Addr         string          `yaml:"addr" validate:"required"`
	Cert         string          `yaml:"cert"`
	Key          string          `yaml:"key" validate:"required_with=Cert"`
	AllowOrigins []string        `yaml:"allow_origins"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig はクライアントIPごとの /api 呼び出し制限。
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
	MaxClients        int     `yaml:"max_clients" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=mysql postgres sqlite"`
	Host     string `yaml:"host" validate:"required_unless=Driver sqlite"`
	Port     int    `yaml:"port" validate:"required_unless=Driver sqlite"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required_unless=Driver sqlite"`
	// postgres のみ（未指定なら disable）
	SSLMode string `yaml:"sslmode"`
	// sqlite のファイルパス（":memory:" 可）
	Path string `yaml:"path" validate:"required_if=Driver sqlite"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	LockTTL  time.Duration `yaml:"lock_ttl" validate:"gt=0"`
}

type OverdueConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ThresholdDays int           `yaml:"threshold_days" validate:"gte=0"`
	RunAt         string        `yaml:"run_at" validate:"datetime=15:04"`
	Timezone      string        `yaml:"timezone" validate:"omitempty,timezone"`
	Message       string        `yaml:"message" validate:"required"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" validate:"required_if=Enabled true"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from" validate:"omitempty,email"`
	Subject  string `yaml:"subject"`
}

type Config struct {
	Version string         `yaml:"version"`
	Mode    string         `yaml:"mode" validate:"oneof=dev release"`
	Server  ServerConfig   `yaml:"server"`
	DB      DatabaseConfig `yaml:"database"`
	Redis   RedisConfig    `yaml:"redis"`
	Overdue OverdueConfig  `yaml:"overdue"`
	Mail    MailConfig     `yaml:"mail"`
}

// Default は設定ファイルで省略された項目の初期値。
func Default() Config {
	return Config{
		Mode: "dev",
		Server: ServerConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"http://localhost:3000"},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				Burst:             40,
				MaxClients:        10000,
			},
		},
		DB: DatabaseConfig{
			Driver: "mysql",
			Host:   "127.0.0.1",
			Port:   3306,
			DBName: "library",
		},
		Redis: RedisConfig{
			Addr:    "127.0.0.1:6379",
			LockTTL: 10 * time.Second,
		},
		Overdue: OverdueConfig{
			Enabled:       true,
			ThresholdDays: 4,
			RunAt:         "00:00",
			Message:       "You have overdue books. Please return them to the library as soon as possible.",
			Timeout:       5 * time.Minute,
		},
		Mail: MailConfig{
			Port:    587,
			Subject: "Overdue books",
		},
	}
}

func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	return Parse(buf)
}

func Parse(buf []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定値が不正: %w", err)
	}
	if c.Mail.Enabled && c.Mail.From == "" {
		return fmt.Errorf("設定値が不正: mail.from required when mail.enabled")
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.RequestsPerSecond <= 0 || rl.Burst <= 0) {
		return fmt.Errorf("設定値が不正: server.rate_limit requires requests_per_second and burst")
	}
	return nil
}

// Location は overdue.timezone を解決する。未指定ならローカル時刻。
func (o OverdueConfig) Location() *time.Location {
	if o.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clock は run_at を時・分に分解する。
func (o OverdueConfig) Clock() (hour, minute int) {
	t, err := time.Parse("15:04", o.RunAt)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
