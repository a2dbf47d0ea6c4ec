// Package config loads provision settings from defaults, an optional YAML
// file, .env files and PROVISION_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PROVISION"

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Probe      ProbeConfig      `mapstructure:"probe" yaml:"probe"`
	Results    ResultsConfig    `mapstructure:"results" yaml:"results"`
	State      StateConfig      `mapstructure:"state" yaml:"state"`
	Schema     SchemaConfig     `mapstructure:"schema" yaml:"schema"`
	LocalStore LocalStoreConfig `mapstructure:"local_store" yaml:"local_store"`
}

type ServerConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RequestTimeout  string `mapstructure:"request_timeout" yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string            `mapstructure:"level" yaml:"level"`
	JSON     bool              `mapstructure:"json" yaml:"json"`
	File     string            `mapstructure:"file" yaml:"file"`
	Rotation LogRotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ProbeConfig controls reachability checks. Mode is "lenient" or "strict".
type ProbeConfig struct {
	Mode             string `mapstructure:"mode" yaml:"mode"`
	HostTimeout      string `mapstructure:"host_timeout" yaml:"host_timeout"`
	PortTimeout      string `mapstructure:"port_timeout" yaml:"port_timeout"`
	HandshakeTimeout string `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	Ports            []int  `mapstructure:"ports" yaml:"ports"`
}

// ResultsConfig selects where field results are kept: "memory" or "redis".
type ResultsConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"`
	TTL      string `mapstructure:"ttl" yaml:"ttl"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
}

type StateConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

type SchemaConfig struct {
	Name           string `mapstructure:"name" yaml:"name"`
	ArtifactPrefix string `mapstructure:"artifact_prefix" yaml:"artifact_prefix"`
}

type LocalStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Load reads configuration. An empty path searches ./config.yaml,
// ./config/config.yaml and $HOME/.provision/config.yaml; a missing file is
// not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles(path)

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.provision")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.State.Path = expandHome(cfg.State.Path)
	return cfg, nil
}

func loadEnvFiles(path string) {
	envFiles := []string{".env", ".env.local"}
	for _, envFile := range envFiles {
		// Missing .env files are fine.
		_ = godotenv.Load(envFile)
	}
	if path != "" {
		dir := filepath.Dir(path)
		for _, envFile := range envFiles {
			_ = godotenv.Load(filepath.Join(dir, envFile))
		}
	}
}

// Duration parses a duration setting, falling back to def when empty or invalid.
func Duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
