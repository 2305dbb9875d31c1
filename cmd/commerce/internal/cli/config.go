package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-commerce/core"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk CLI configuration. The commerce section is
// handed to the client config provider as is.
type FileConfig struct {
	Commerce map[string]any `yaml:"commerce"`
	Store    StoreConfig    `yaml:"store"`
	Tokens   TokenConfig    `yaml:"tokens"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Debug     bool   `yaml:"debug"`
	SecretKey string `yaml:"secret_key"`
}

func (c StoreConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type TokenConfig struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// LoadFileConfig reads path. A missing file yields an empty configuration.
func LoadFileConfig(path string) (FileConfig, error) {
	var cfg FileConfig
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// YAMLConfigLoader serves the commerce section of a FileConfig.
type YAMLConfigLoader struct {
	Values map[string]any
}

func (l YAMLConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

var _ core.RawConfigLoader = YAMLConfigLoader{}
