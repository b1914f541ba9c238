// Package config loads project-level settings for a blocksmith workspace.
//
// Settings come from blocksmith.yaml at the project root, overridable per
// variable through the environment. A .env file next to the config is loaded
// first so local secrets never have to live in the YAML file.
package config

import (
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/blocksmith-dev/blocksmith/internal/errors"
)

// FileName is the project configuration file at the workspace root.
const FileName = "blocksmith.yaml"

// Config is the full project configuration.
type Config struct {
	BlocksRoot    string `yaml:"blocksRoot" env:"BLOCKSMITH_BLOCKS_ROOT" env-default:"blocks"`
	TemplatesRoot string `yaml:"templatesRoot" env:"BLOCKSMITH_TEMPLATES_ROOT" env-default:"templates"`

	Dev     DevConfig     `yaml:"dev"`
	Backend BackendConfig `yaml:"backend"`
	Upload  UploadConfig  `yaml:"upload"`
}

// DevConfig configures the local preview server.
type DevConfig struct {
	Host string `yaml:"host" env:"BLOCKSMITH_DEV_HOST" env-default:"localhost"`
	Port int    `yaml:"port" env:"BLOCKSMITH_DEV_PORT" env-default:"3456"`
	// BundlerCommand, when set, is started alongside the dev server to
	// serve the compiled preview assets.
	BundlerCommand string `yaml:"bundlerCommand" env:"BLOCKSMITH_BUNDLER_COMMAND"`
	BundlerURL     string `yaml:"bundlerUrl" env:"BLOCKSMITH_BUNDLER_URL"`
}

// BackendConfig configures the publishing backend.
type BackendConfig struct {
	URL       string `yaml:"url" env:"BLOCKSMITH_BACKEND_URL" env-default:"https://api.blocksmith.dev/graphql"`
	Workspace string `yaml:"workspace" env:"BLOCKSMITH_WORKSPACE"`
	// APIToken comes from the environment only; it has no YAML home on
	// purpose so it never ends up committed.
	APIToken string `yaml:"-" env:"BLOCKSMITH_API_TOKEN"`
}

// UploadConfig configures object-storage uploads of packaged resources.
type UploadConfig struct {
	Endpoint  string `yaml:"endpoint" env:"BLOCKSMITH_UPLOAD_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"BLOCKSMITH_UPLOAD_BUCKET" env-default:"blocksmith-packages"`
	Region    string `yaml:"region" env:"BLOCKSMITH_UPLOAD_REGION"`
	AccessKey string `yaml:"-" env:"BLOCKSMITH_UPLOAD_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"BLOCKSMITH_UPLOAD_SECRET_KEY"`
	UseSSL    bool   `yaml:"useSSL" env:"BLOCKSMITH_UPLOAD_SSL" env-default:"true"`
}

// Load reads configuration for the project rooted at projectRoot. A missing
// blocksmith.yaml is not an error; defaults and environment variables still
// apply. A present but unparseable file is.
func Load(projectRoot string) (*Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))

	var cfg Config
	path := filepath.Join(projectRoot, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigResolution,
				"failed to load "+FileName)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigResolution,
				"failed to read environment configuration")
		}
	}
	return &cfg, nil
}

// BlocksDir returns the absolute blocks root for the project.
func (c *Config) BlocksDir(projectRoot string) string {
	return filepath.Join(projectRoot, c.BlocksRoot)
}

// TemplatesDir returns the absolute templates root for the project.
func (c *Config) TemplatesDir(projectRoot string) string {
	return filepath.Join(projectRoot, c.TemplatesRoot)
}

// Save writes the YAML representation of the configuration to the project
// root. Secrets carried via environment variables are not written.
func Save(projectRoot string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode configuration")
	}
	path := filepath.Join(projectRoot, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageFailure, "failed to write "+FileName)
	}
	return nil
}
