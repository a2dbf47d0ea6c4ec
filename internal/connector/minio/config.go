package minio

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nucleus/provision-core/internal/credentials"
	"github.com/nucleus/provision-core/internal/endpoint"
)

const (
	defaultBucket = "chef-images"
	defaultPort   = 9000
)

// Config captures the object.minio endpoint configuration.
type Config struct {
	EndpointURL      string
	Region           string
	UseSSL           bool
	AccessKeyID      string
	SecretAccessKey  string
	Bucket           string
	RootPathOverride string
	VerifyBucket     bool
}

// ParseConfig builds a Config from loose parameters. A bare host (with
// optional "port" param) is accepted in place of an endpoint URL.
func ParseConfig(params map[string]any) *Config {
	cfg := &Config{
		EndpointURL:     endpoint.FirstString(params, "endpointUrl", "endpoint_url", "endpoint", "url"),
		Region:          endpoint.FirstString(params, "region"),
		UseSSL:          endpoint.FirstBool(params, false, "useSSL", "use_ssl", "useTLS"),
		AccessKeyID:     endpoint.FirstString(params, "accessKeyId", "access_key_id", "accessKey"),
		SecretAccessKey: endpoint.FirstString(params, "secretAccessKey", "secret_access_key", "secretKey"),
		Bucket:          endpoint.FirstString(params, "bucket"),
		RootPathOverride: endpoint.FirstString(params,
			"rootPath", "root_path"),
		VerifyBucket: endpoint.FirstBool(params, false, "verifyBucket"),
	}
	if cfg.EndpointURL == "" {
		if host := endpoint.FirstString(params, "host", "hostname"); host != "" {
			port := endpoint.FirstInt(params, defaultPort, "port")
			cfg.EndpointURL = net.JoinHostPort(host, strconv.Itoa(port))
		}
	}
	cfg.normalizeDefaults()
	return cfg
}

func (c *Config) normalizeDefaults() {
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}
	if c.EndpointURL != "" && !strings.Contains(c.EndpointURL, "://") {
		scheme := "http://"
		if c.UseSSL {
			scheme = "https://"
		}
		c.EndpointURL = scheme + c.EndpointURL
	}
	c.EndpointURL = strings.TrimSuffix(c.EndpointURL, "/")
}

// IsLocal reports whether the endpoint is a file:// store used for development.
func (c *Config) IsLocal() bool {
	return strings.HasPrefix(c.EndpointURL, "file://")
}

// HostPort returns the host and port of the endpoint URL, defaulting the
// port from the scheme.
func (c *Config) HostPort() (string, int) {
	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		return "", 0
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		port = 80
		if u.Scheme == "https" {
			port = 443
		}
	}
	return u.Hostname(), port
}

// Validate checks field syntax.
func (c *Config) Validate() *endpoint.ValidationResult {
	if !c.IsLocal() {
		if res := credentials.ValidateURL(c.EndpointURL); !res.IsValid {
			return &endpoint.ValidationResult{Valid: false, Message: "endpointUrl: " + res.Message, Code: endpoint.CodeConfigInvalid}
		}
	}
	if res := credentials.ValidateAccessKey(c.AccessKeyID); !res.IsValid {
		return &endpoint.ValidationResult{Valid: false, Message: "accessKeyId: " + res.Message, Code: CodeAuthInvalid}
	}
	if res := credentials.ValidateSecretKey(c.SecretAccessKey); !res.IsValid {
		return &endpoint.ValidationResult{Valid: false, Message: "secretAccessKey: " + res.Message, Code: CodeAuthInvalid}
	}
	if res := credentials.ValidateBucketName(c.Bucket); !res.IsValid {
		return &endpoint.ValidationResult{Valid: false, Message: "bucket: " + res.Message, Code: endpoint.CodeConfigInvalid}
	}
	return &endpoint.ValidationResult{Valid: true, Message: "connection parameters look valid"}
}

func (c *Config) objectRoot() string {
	if c.RootPathOverride != "" {
		return c.RootPathOverride
	}
	if c.IsLocal() {
		if u, err := url.Parse(c.EndpointURL); err == nil && u.Path != "" {
			return u.Path
		}
	}
	host, _ := c.HostPort()
	return filepath.Join(os.TempDir(), "minio-"+sanitizePath(host))
}

func sanitizePath(raw string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return replacer.Replace(raw)
}
