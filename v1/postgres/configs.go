package postgres

import "time"

const (
	DefaultPort            = "5432"
	DefaultSSLMode         = "disable"
	DefaultMaxOpenConns    = 50
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = time.Minute

	// DefaultHealthInterval is how often MonitorConnection pings the database.
	DefaultHealthInterval = 10 * time.Second
)

// Config holds the connection settings for PostgreSQL.
type Config struct {
	Connection        Connection        `mapstructure:"connection"`
	ConnectionDetails ConnectionDetails `mapstructure:"connection_details"`
}

type Connection struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type ConnectionDetails struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders the connection as a libpq keyword/value string understood by pgx.
func (c Connection) DSN() string {
	port := c.Port
	if port == "" {
		port = DefaultPort
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}
	return "host=" + c.Host + " port=" + port + " user=" + c.User +
		" password=" + c.Password + " dbname=" + c.DbName + " sslmode=" + sslMode
}
