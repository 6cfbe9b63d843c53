// Package config loads sandboxd's TOML configuration file, with
// APP_HOST/APP_PORT environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	Docker  DockerConfig  `toml:"docker"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	Install InstallConfig `toml:"install,omitempty"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type AuthConfig struct {
	RequireAuth       bool   `toml:"require_auth"`
	DefaultUserID     string `toml:"default_user_id"`
	UserSandboxLimit  int    `toml:"user_sandbox_limit"`
	JWTSecret         string `toml:"jwt_secret"`
	AppendAPIKeyToURL bool   `toml:"append_api_key_to_url"`
}

type DockerConfig struct {
	DefaultImage           string `toml:"default_image"`
	DockerfilePath         string `toml:"dockerfile_path"`
	CheckDockerfileChanges bool   `toml:"check_dockerfile_changes"`
	BuildInfoFile          string `toml:"build_info_file"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	LogFile string `toml:"log_file"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

type InstallConfig struct {
	IndexURL string `toml:"index_url,omitempty"`
}

// Default returns the configuration used when no TOML file is found.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Auth: AuthConfig{
			RequireAuth:      true,
			DefaultUserID:    "root",
			UserSandboxLimit: 3,
		},
		Docker: DockerConfig{
			DefaultImage:           "python-sandbox:latest",
			DockerfilePath:         "docker/Dockerfile",
			CheckDockerfileChanges: true,
			BuildInfoFile:          "data/build_info.json",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{DBPath: "data/sandboxd.sqlite"},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// APP_HOST/APP_PORT environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if host := strings.TrimSpace(os.Getenv("APP_HOST")); host != "" {
		cfg.Server.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("APP_PORT")); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	if cfg.Auth.UserSandboxLimit <= 0 {
		cfg.Auth.UserSandboxLimit = 3
	}
	return cfg, nil
}
