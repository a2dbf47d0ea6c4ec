// Package credentials holds pure syntax and strength checks for operator-entered
// backend configuration, and generators for strong random secrets.
package credentials

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Result is the verdict for a single field value.
type Result struct {
	IsValid  bool      `json:"isValid"`
	Message  string    `json:"message"`
	Strength *Strength `json:"strength,omitempty"`
}

func valid(message string) Result   { return Result{IsValid: true, Message: message} }
func invalid(message string) Result { return Result{IsValid: false, Message: message} }

var (
	hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	ipv4Pattern   = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])(\.(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])){3}$`)
	dottedDigits  = regexp.MustCompile(`^[0-9.]+$`)

	pgIdentifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	mysqlIdentifier = regexp.MustCompile(`^[A-Za-z0-9$_]+$`)
	allDigits       = regexp.MustCompile(`^[0-9]+$`)

	bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// ValidateHostname accepts localhost, dotted IPv4, IPv6 (optionally bracketed)
// and RFC-1123 host names.
func ValidateHostname(host string) Result {
	if host == "" {
		return invalid("Host is required")
	}
	if strings.ContainsFunc(host, unicode.IsSpace) {
		return invalid("Host must not contain spaces")
	}
	if strings.EqualFold(host, "localhost") {
		return valid("Valid host (localhost)")
	}
	if dottedDigits.MatchString(host) {
		if ipv4Pattern.MatchString(host) {
			return valid("Valid IPv4 address")
		}
		return invalid("Invalid IPv4 address")
	}
	if strings.Contains(host, ":") {
		bare := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		if ip := net.ParseIP(bare); ip != nil && ip.To4() == nil {
			return valid("Valid IPv6 address")
		}
		return invalid("Host must not include a port or scheme")
	}
	if len(host) > 253 {
		return invalid("Host name must be at most 253 characters")
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if !hostnameLabel.MatchString(label) {
			return invalid(fmt.Sprintf("Invalid host name label %q: use letters, digits and inner hyphens (max 63 characters)", label))
		}
	}
	return valid("Valid host name")
}

// ValidatePort accepts an integer in 1..65535.
func ValidatePort(port string) Result {
	if port == "" {
		return invalid("Port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return invalid("Port must be a number")
	}
	if n < 1 || n > 65535 {
		return invalid("Port must be between 1 and 65535")
	}
	return valid("Valid port")
}

// ValidateUsername checks a database role name for the given driver
// ("postgres" or "mysql"; anything else uses the postgres rules).
func ValidateUsername(driver, user string) Result {
	if user == "" {
		return invalid("Username is required")
	}
	if strings.ContainsFunc(user, unicode.IsSpace) {
		return invalid("Username must not contain spaces")
	}
	if driver == "mysql" {
		if len(user) > 32 {
			return invalid("Username must be at most 32 characters")
		}
		if !mysqlIdentifier.MatchString(user) {
			return invalid("Username may only contain letters, digits, $ and _")
		}
		return valid("Valid username")
	}
	if len(user) > 63 {
		return invalid("Username must be at most 63 characters")
	}
	if !pgIdentifier.MatchString(user) {
		return invalid("Username must start with a letter or underscore and contain only letters, digits, $ and _")
	}
	return valid("Valid username")
}

// ValidateDatabaseName checks a database name for the given driver.
func ValidateDatabaseName(driver, name string) Result {
	if name == "" {
		return invalid("Database name is required")
	}
	if driver == "mysql" {
		if len(name) > 64 {
			return invalid("Database name must be at most 64 characters")
		}
		if !mysqlIdentifier.MatchString(name) || allDigits.MatchString(name) {
			return invalid("Database name may only contain letters, digits, $ and _ and must not be all digits")
		}
		return valid("Valid database name")
	}
	if len(name) > 63 {
		return invalid("Database name must be at most 63 characters")
	}
	if !pgIdentifier.MatchString(name) {
		return invalid("Database name must start with a letter or underscore and contain only letters, digits, $ and _")
	}
	return valid("Valid database name")
}

// ValidateAccessKey checks an object-store access key.
func ValidateAccessKey(key string) Result {
	switch {
	case key == "":
		return invalid("Access key is required")
	case len(key) < 3:
		return invalid("Access key must be at least 3 characters")
	case len(key) > 128:
		return invalid("Access key must be at most 128 characters")
	case strings.ContainsFunc(key, unicode.IsSpace):
		return invalid("Access key must not contain spaces")
	case strings.ContainsAny(key, "=,"):
		return invalid("Access key must not contain '=' or ','")
	}
	return valid("Valid access key")
}

// ValidateSecretKey checks an object-store secret key.
func ValidateSecretKey(key string) Result {
	switch {
	case key == "":
		return invalid("Secret key is required")
	case len(key) < 8:
		return invalid("Secret key must be at least 8 characters")
	case len(key) > MaxSecretKeyLength:
		return invalid(fmt.Sprintf("Secret key must be at most %d characters", MaxSecretKeyLength))
	case strings.ContainsFunc(key, unicode.IsSpace):
		return invalid("Secret key must not contain spaces")
	}
	return valid("Valid secret key")
}

// ValidateBucketName applies the S3 bucket naming rules.
func ValidateBucketName(name string) Result {
	switch {
	case name == "":
		return invalid("Bucket name is required")
	case len(name) < 3 || len(name) > 63:
		return invalid("Bucket name must be between 3 and 63 characters")
	case !bucketPattern.MatchString(name):
		return invalid("Bucket name may only contain lowercase letters, digits, dots and hyphens, and must start and end with a letter or digit")
	case strings.Contains(name, ".."):
		return invalid("Bucket name must not contain consecutive dots")
	case ipv4Pattern.MatchString(name):
		return invalid("Bucket name must not be formatted as an IP address")
	case strings.HasPrefix(name, "xn--"):
		return invalid("Bucket name must not start with 'xn--'")
	case strings.HasSuffix(name, "-s3alias"), strings.HasSuffix(name, "--ol-s3"):
		return invalid("Bucket name uses a reserved suffix")
	}
	return valid("Valid bucket name")
}

// ValidateURL checks an absolute http(s) URL whose host is itself valid.
func ValidateURL(raw string) Result {
	if raw == "" {
		return invalid("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid URL: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("URL must start with http:// or https://")
	}
	if res := ValidateHostname(u.Hostname()); !res.IsValid {
		return res
	}
	if p := u.Port(); p != "" {
		if res := ValidatePort(p); !res.IsValid {
			return res
		}
	}
	return valid("Valid URL")
}
