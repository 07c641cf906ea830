package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`

	IMAPHost        string `mapstructure:"IMAP_HOST"`
	IMAPPort        int    `mapstructure:"IMAP_PORT"`
	IMAPUser        string `mapstructure:"IMAP_USER"`
	IMAPPassword    string `mapstructure:"IMAP_PASSWORD"`
	IMAPFolder      string `mapstructure:"IMAP_FOLDER"`
	IMAPPollSeconds int    `mapstructure:"IMAP_POLL_SECONDS"`
	IMAPSecure      bool   `mapstructure:"IMAP_SECURE"`

	FuzzyMatchThreshold int `mapstructure:"FUZZY_MATCH_THRESHOLD"`

	PDFDir string `mapstructure:"PDF_DIR"`
	PDFURL string `mapstructure:"PDF_URL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("IMAP_FOLDER", "INBOX")
	v.SetDefault("IMAP_POLL_SECONDS", 15)
	v.SetDefault("IMAP_SECURE", true)
	v.SetDefault("FUZZY_MATCH_THRESHOLD", 80)
	v.SetDefault("PDF_DIR", "./pdfs")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) PollInterval() time.Duration {
	if c.IMAPPollSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.IMAPPollSeconds) * time.Second
}
