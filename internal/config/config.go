package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the contentsort configuration. It is read from config.{json,yaml}
// in the store dir (or --config), overridden by CONTENTSORT_* env vars.
type Config struct {
	Sort   SortConfig   `mapstructure:"sort" json:"sort"`
	Render RenderConfig `mapstructure:"render" json:"render"`
	Web    WebConfig    `mapstructure:"web" json:"web"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
}

type SortConfig struct {
	// DefaultSortOrder is the value given to the first item of a reorder.
	DefaultSortOrder int `mapstructure:"defaultSortOrder" json:"defaultSortOrder"`
	// Delimiter separates ShortIDs in the submitted sortorder field.
	Delimiter string `mapstructure:"delimiter" json:"delimiter"`
	// Query is used when the dialog is opened without one.
	Query string `mapstructure:"query" json:"query"`
}

type RenderConfig struct {
	ClipLength int `mapstructure:"clipLength" json:"clipLength"`
}

type WebConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	ReadOnly bool   `mapstructure:"readOnly" json:"readOnly"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

const EnvPrefix = "CONTENTSORT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("sort.defaultSortOrder", 0)
	v.SetDefault("sort.delimiter", "|")
	v.SetDefault("sort.query", "./*")
	v.SetDefault("render.clipLength", 40)
	v.SetDefault("web.addr", "127.0.0.1:3340")
	v.SetDefault("web.readOnly", false)
	v.SetDefault("log.level", "info")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration. file, when non-empty, must exist; otherwise config.*
// is looked up in dir and a missing file means defaults.
func Load(dir, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(dir) != "" {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Sort.Delimiter == "" {
		c.Sort.Delimiter = "|"
	}
	if strings.TrimSpace(c.Sort.Query) == "" {
		c.Sort.Query = "./*"
	}
	if c.Render.ClipLength <= 0 {
		c.Render.ClipLength = 40
	}
}

// WriteDefault writes the default config as config.yaml into dir unless one exists.
func WriteDefault(dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	for _, ext := range []string{"yaml", "yml", "json", "toml"} {
		p := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(p); err == nil {
			return p, false, nil
		}
	}
	v := viper.New()
	setDefaults(v)
	p := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(p); err != nil {
		return "", false, err
	}
	return p, true, nil
}
