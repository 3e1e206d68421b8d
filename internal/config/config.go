package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all visarea configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty resolves to store.DefaultDBPath()
}

type EngineConfig struct {
	BatchChunk  int           `yaml:"batch_chunk" validate:"min=2"`   // locations per AssignMany call during import
	LoadTimeout time.Duration `yaml:"load_timeout" validate:"min=0"` // bound on a shared tail load, 0 = none
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Engine: EngineConfig{
			BatchChunk:  5000,
			LoadTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
// A missing file is not an error when path is empty. VISAREA_DB overrides
// the database path.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if db := os.Getenv("VISAREA_DB"); db != "" {
		cfg.Database.Path = db
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
