package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
			RequestTimeout:  "30s",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
			File:  "",
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Probe: ProbeConfig{
			Mode:             "lenient",
			HostTimeout:      "3s",
			PortTimeout:      "3s",
			HandshakeTimeout: "5s",
			Ports:            []int{443, 80},
		},
		Results: ResultsConfig{
			Backend:  "memory",
			TTL:      "10s",
			RedisURL: "localhost:6379",
		},
		State: StateConfig{
			Path:      "$HOME/.provision/state.yaml",
			SecretKey: "",
		},
		Schema: SchemaConfig{
			Name:           "public",
			ArtifactPrefix: "chef-numbers",
		},
		LocalStore: LocalStoreConfig{
			Path: "$HOME/.provision/records.db",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.rotation.max_size", d.Log.Rotation.MaxSize)
	v.SetDefault("log.rotation.max_backups", d.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age", d.Log.Rotation.MaxAge)
	v.SetDefault("log.rotation.compress", d.Log.Rotation.Compress)

	v.SetDefault("probe.mode", d.Probe.Mode)
	v.SetDefault("probe.host_timeout", d.Probe.HostTimeout)
	v.SetDefault("probe.port_timeout", d.Probe.PortTimeout)
	v.SetDefault("probe.handshake_timeout", d.Probe.HandshakeTimeout)
	v.SetDefault("probe.ports", d.Probe.Ports)

	v.SetDefault("results.backend", d.Results.Backend)
	v.SetDefault("results.ttl", d.Results.TTL)
	v.SetDefault("results.redis_url", d.Results.RedisURL)

	v.SetDefault("state.path", d.State.Path)
	v.SetDefault("state.secret_key", d.State.SecretKey)

	v.SetDefault("schema.name", d.Schema.Name)
	v.SetDefault("schema.artifact_prefix", d.Schema.ArtifactPrefix)

	v.SetDefault("local_store.path", d.LocalStore.Path)
}

// Generate renders the default configuration as YAML.
func Generate() ([]byte, error) {
	d := Default()
	return yaml.Marshal(&d)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "$HOME") && !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	p = strings.TrimPrefix(strings.TrimPrefix(p, "$HOME"), "~")
	return filepath.Join(home, p)
}

// LocalStorePath returns the offline store path with $HOME expanded.
func (c *Config) LocalStorePath() string {
	return expandHome(c.LocalStore.Path)
}
