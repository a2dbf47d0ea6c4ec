package jdbc

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nucleus/provision-core/internal/endpoint"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const connectTimeout = 5 * time.Second

// Config holds direct database connection configuration.
type Config struct {
	Driver           string
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	SSLMode          string
	Schema           string
	ConnectionString string
}

// ParseConfig extracts configuration from a map. driver overrides any
// "driver" param.
func ParseConfig(driver string, m map[string]any) *Config {
	if driver == "" {
		driver = endpoint.FirstString(m, "driver")
	}
	if driver != DriverMySQL {
		driver = DriverPostgres
	}
	defaultPort := 5432
	if driver == DriverMySQL {
		defaultPort = 3306
	}

	cfg := &Config{
		Driver:           driver,
		Host:             endpoint.FirstString(m, "host", "hostname"),
		Port:             endpoint.FirstInt(m, defaultPort, "port"),
		Database:         endpoint.FirstString(m, "database", "dbname"),
		User:             endpoint.FirstString(m, "username", "user"),
		Password:         endpoint.FirstString(m, "password"),
		SSLMode:          endpoint.FirstString(m, "ssl_mode", "sslMode"),
		Schema:           endpoint.FirstString(m, "schema"),
		ConnectionString: endpoint.FirstString(m, "connection_string", "connectionString"),
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
		if driver == DriverMySQL {
			cfg.Schema = cfg.Database
		}
	}
	if cfg.ConnectionString == "" {
		cfg.ConnectionString = cfg.dsn()
	}
	return cfg
}

// SQLDriverName is the database/sql driver registered for the config's driver.
func (c *Config) SQLDriverName() string {
	if c.Driver == DriverMySQL {
		return "mysql"
	}
	return "pgx"
}

func (c *Config) dsn() string {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	if c.Driver == DriverMySQL {
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = c.Database
		mc.Timeout = connectTimeout
		return mc.FormatDSN()
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   addr,
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(connectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}
