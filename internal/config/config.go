package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Capture CaptureConfig `mapstructure:"capture"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=postgres oracle sqlite"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// Path is the database file location, sqlite only.
	Path string `mapstructure:"path"`
	Pool struct {
		MaxConns int `mapstructure:"max_conns"`
		MinConns int `mapstructure:"min_conns"`
	} `mapstructure:"pool"`
}

type CaptureConfig struct {
	// MaxBodyBytes caps the stored body; longer bodies are prefix-truncated.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=1"`
	// MaxUploadBytes is the framework-level hard limit on request size.
	MaxUploadBytes int    `mapstructure:"max_upload_bytes" validate:"min=1"`
	UploadDir      string `mapstructure:"upload_dir" validate:"required"`
	RedactedFields string `mapstructure:"redacted_fields"`
}

// DenyList splits the comma-separated redacted_fields setting.
func (c CaptureConfig) DenyList() []string {
	var out []string
	for _, f := range strings.Split(c.RedactedFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type AdminConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("db.type", "postgres")
	v.SetDefault("db.pool.max_conns", 10)
	v.SetDefault("db.pool.min_conns", 2)
	v.SetDefault("capture.max_body_bytes", 10*1024*1024)
	v.SetDefault("capture.max_upload_bytes", 100*1024*1024)
	v.SetDefault("capture.upload_dir", "./uploads")
	v.SetDefault("capture.redacted_fields", "authorization,cookie,x-api-key")
	// Registered empty so ADMIN_TOKEN is visible to Unmarshal; validation
	// rejects the empty value.
	v.SetDefault("admin.token", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env variables and defaults are enough.
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
