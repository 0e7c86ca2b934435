package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognised by Load.
const (
	EnvConfigFile      = "VERSIONPATCHER_CONFIG"
	EnvLogLevel        = "VERSIONPATCHER_LOG"
	EnvStrictDeletions = "VERSIONPATCHER_STRICT_DELETIONS"
	EnvS3Region        = "VERSIONPATCHER_S3_REGION"
	EnvS3Profile       = "VERSIONPATCHER_S3_PROFILE"
	EnvS3Endpoint      = "VERSIONPATCHER_S3_ENDPOINT"
)

// DefaultFileName is looked up in the user configuration directory.
const DefaultFileName = "versionpatcher.yaml"

// S3 configures access to containers stored in S3 or a compatible store.
type S3 struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Config is the resolved configuration.
type Config struct {
	// Source is the YAML file that was loaded, empty when none was found.
	Source          string `yaml:"-"`
	LogLevel        string `yaml:"log_level"`
	StrictDeletions bool   `yaml:"strict_deletions"`
	S3              S3     `yaml:"s3"`
}

// LoadDotEnv seeds the environment from .env files. A missing file is fine,
// but other errors are surfaced.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// Load resolves and reads the configuration file, then applies environment
// overrides. An explicit path must exist; the default location is optional.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}

	var cfg Config
	file := explicit
	if file == "" {
		dir, err := os.UserConfigDir()
		if err == nil {
			file = filepath.Join(dir, DefaultFileName)
		}
	}

	if file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := decode(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", file, err)
			}
			cfg.Source = file
		case errors.Is(err, fs.ErrNotExist) && explicit == "":
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc != nil {
		if err := validate(doc); err != nil {
			return err
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStrictDeletions)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvStrictDeletions, err)
		}
		cfg.StrictDeletions = b
	}
	if v := strings.TrimSpace(os.Getenv(EnvS3Region)); v != "" {
		cfg.S3.Region = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvS3Profile)); v != "" {
		cfg.S3.Profile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvS3Endpoint)); v != "" {
		cfg.S3.Endpoint = v
	}
	return nil
}
