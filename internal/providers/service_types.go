package providers

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // PostgreSQL
)

// DefaultPingTimeout bounds a single service reachability check.
const DefaultPingTimeout = 2 * time.Second

// PingFunc checks that a service answers at serviceURL.
type PingFunc func(ctx context.Context, serviceURL string) error

// SQLOpener opens a database handle; sql.Open in production.
type SQLOpener func(driverName, dataSourceName string) (*sql.DB, error)

// ServiceType describes one kind of network service a project can require.
type ServiceType struct {
	// Name is the value of the "type" option, e.g. "redis".
	Name string

	// Description is shown in listings.
	Description string

	// DefaultEnvVar is the variable a service of this type is bound to
	// when the manifest does not name one.
	DefaultEnvVar string

	// DefaultURL is tried in development mode before anything else.
	DefaultURL string

	// Schemes are the accepted URL schemes.
	Schemes []string

	// Ping checks reachability.
	Ping PingFunc

	// Launcher starts a throwaway local instance; nil when kapsel cannot.
	Launcher Launcher
}

// ValidURL reports whether u has one of the accepted schemes.
func (s ServiceType) ValidURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	for _, scheme := range s.Schemes {
		if parsed.Scheme == scheme {
			return true
		}
	}
	return false
}

// builtinServiceTypes returns the catalog in registration order.
func builtinServiceTypes(open SQLOpener, launcher Launcher) []ServiceType {
	return []ServiceType{
		{
			Name:          "redis",
			Description:   "A Redis server",
			DefaultEnvVar: "REDIS_URL",
			DefaultURL:    "redis://localhost:6379",
			Schemes:       []string{"redis"},
			Ping:          PingRedis,
			Launcher:      launcher,
		},
		{
			Name:          "postgresql",
			Description:   "A PostgreSQL server",
			DefaultEnvVar: "POSTGRES_URL",
			DefaultURL:    "postgresql://localhost:5432/postgres",
			Schemes:       []string{"postgresql", "postgres"},
			Ping:          SQLPinger("postgres", open),
		},
		{
			Name:          "mysql",
			Description:   "A MySQL server",
			DefaultEnvVar: "MYSQL_URL",
			DefaultURL:    "mysql://root@localhost:3306/mysql",
			Schemes:       []string{"mysql"},
			Ping:          SQLPinger("mysql", open),
		},
	}
}

// PingRedis speaks just enough RESP to authenticate and PING.
func PingRedis(ctx context.Context, serviceURL string) error {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "6379")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	reader := bufio.NewReader(conn)
	if password, ok := u.User.Password(); ok {
		if err := redisCommand(conn, reader, "AUTH", password); err != nil {
			return err
		}
	}
	return redisCommand(conn, reader, "PING")
}

func redisCommand(conn net.Conn, reader *bufio.Reader, args ...string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(a), a)
	}
	if _, err := conn.Write([]byte(b.String())); err != nil {
		return err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, "-") {
		return fmt.Errorf("redis %s: %s", strings.ToLower(args[0]), strings.TrimPrefix(line, "-"))
	}
	return nil
}

// SQLPinger returns a PingFunc opening driverName through open.
func SQLPinger(driverName string, open SQLOpener) PingFunc {
	if open == nil {
		open = sql.Open
	}
	return func(ctx context.Context, serviceURL string) error {
		dsn := serviceURL
		if driverName == "mysql" {
			var err error
			dsn, err = MySQLDSN(serviceURL)
			if err != nil {
				return err
			}
		}

		db, err := open(driverName, dsn)
		if err != nil {
			return fmt.Errorf("failed to open database connection: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	}
}

// MySQLDSN converts a mysql:// URL to the driver's DSN format.
func MySQLDSN(serviceURL string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid mysql URL: %w", err)
	}
	if u.Scheme != "mysql" {
		return "", fmt.Errorf("invalid mysql URL: scheme must be mysql, got %q", u.Scheme)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.Timeout = DefaultPingTimeout
	return cfg.FormatDSN(), nil
}
