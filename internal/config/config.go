package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type MobizonConfig struct {
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables the rolling counters
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AlertChatID int64  `yaml:"alert_chat_id"`
}

type RecoveryConfig struct {
	CodeLength          int `yaml:"code_length"`
	CodeTTLMinutes      int `yaml:"code_ttl_minutes"`
	CodeMaxAttempts     int `yaml:"code_max_attempts"`
	TokenTTLMinutes     int `yaml:"token_ttl_minutes"`
	TempPasswordLength  int `yaml:"temp_password_length"`
	MaxResends          int `yaml:"max_resends"`
	ResendWindowMinutes int `yaml:"resend_window_minutes"`
}

type AuditConfig struct {
	SuspiciousThreshold   int `yaml:"suspicious_threshold"`
	SuspiciousWindowHours int `yaml:"suspicious_window_hours"`
	RecentWindowMinutes   int `yaml:"recent_window_minutes"`
	QueryLimit            int `yaml:"query_limit"`
	QueryLimitCap         int `yaml:"query_limit_cap"`
	RefreshSeconds        int `yaml:"refresh_seconds"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		ResetBaseURL string `yaml:"reset_base_url"`
	} `yaml:"email"`
	Auth struct {
		JWTSecret        string `yaml:"jwt_secret"`
		AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
	} `yaml:"auth"`
	Mobizon  MobizonConfig  `yaml:"mobizon"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Audit    AuditConfig    `yaml:"audit"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	cfg.fillDefaults()
	return &cfg
}

func (c *Config) fillDefaults() {
	if c.Recovery.CodeLength == 0 {
		c.Recovery.CodeLength = 6
	}
	if c.Recovery.CodeTTLMinutes == 0 {
		c.Recovery.CodeTTLMinutes = 10
	}
	if c.Recovery.CodeMaxAttempts == 0 {
		c.Recovery.CodeMaxAttempts = 5
	}
	if c.Recovery.TokenTTLMinutes == 0 {
		c.Recovery.TokenTTLMinutes = 60
	}
	if c.Recovery.TempPasswordLength == 0 {
		c.Recovery.TempPasswordLength = 8
	}
	if c.Recovery.MaxResends == 0 {
		c.Recovery.MaxResends = 3
	}
	if c.Recovery.ResendWindowMinutes == 0 {
		c.Recovery.ResendWindowMinutes = 10
	}
	if c.Audit.SuspiciousThreshold == 0 {
		c.Audit.SuspiciousThreshold = 5
	}
	if c.Audit.SuspiciousWindowHours == 0 {
		c.Audit.SuspiciousWindowHours = 24
	}
	if c.Audit.RecentWindowMinutes == 0 {
		c.Audit.RecentWindowMinutes = 60
	}
	if c.Audit.QueryLimit == 0 {
		c.Audit.QueryLimit = 50
	}
	if c.Audit.QueryLimitCap == 0 {
		c.Audit.QueryLimitCap = 200
	}
	if c.Audit.RefreshSeconds == 0 {
		c.Audit.RefreshSeconds = 30
	}
	if c.Auth.AccessTTLMinutes == 0 {
		c.Auth.AccessTTLMinutes = 15
	}
}
