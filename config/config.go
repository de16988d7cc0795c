package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config application configuration, loaded from an optional YAML file with
// environment variable overrides on top
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Feed     FeedConfig     `yaml:"feed"`
	FTP      *FTPConfig     `yaml:"ftp,omitempty"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	FeedSecret string `yaml:"feed_secret"`
}

type FeedConfig struct {
	Dir       string `yaml:"dir"`
	FileName  string `yaml:"file_name"`
	BatchSize int    `yaml:"batch_size"`
}

type FTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dir      string `yaml:"dir"`
}

// Load read configuration. A missing file is not an error, defaults and
// environment apply either way.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{DSN: "feedsvc:feedsvc@tcp(localhost:3306)/store?parseTime=true"},
		Server:   ServerConfig{Addr: ":8080"},
		Feed:     FeedConfig{Dir: "data/feeds", FileName: "products.csv", BatchSize: 100},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config file:%v", path)
		}
		if err == nil {
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config file:%v", path)
			}
		}
	}
	cfg.Database.DSN = getEnv("FEEDSVC_DB_DSN", cfg.Database.DSN)
	cfg.Server.Addr = getEnv("FEEDSVC_ADDR", cfg.Server.Addr)
	cfg.Server.FeedSecret = getEnv("FEEDSVC_FEED_SECRET", cfg.Server.FeedSecret)
	cfg.Feed.Dir = getEnv("FEEDSVC_FEED_DIR", cfg.Feed.Dir)
	cfg.Feed.FileName = getEnv("FEEDSVC_FEED_FILE", cfg.Feed.FileName)
	cfg.Feed.BatchSize = getEnvInt("FEEDSVC_BATCH_SIZE", cfg.Feed.BatchSize)
	if cfg.Feed.BatchSize < 1 {
		return nil, errors.Errorf("feed batch size must be positive, got:%v", cfg.Feed.BatchSize)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
