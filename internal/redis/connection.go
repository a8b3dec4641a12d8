package redis

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	pqerrors "github.com/BranchIntl/postqueue/errors"
	"github.com/gomodule/redigo/redis"
)

var (
	// ErrInvalidScheme is returned when the Redis URI scheme is invalid
	ErrInvalidScheme = errors.New("invalid Redis database URI scheme")
)

// Options configures a Redis connection pool
type Options struct {
	// URI is the Redis connection URI (redis://, rediss:// or unix://)
	URI string

	MaxConnections int
	MaxIdle        int
	IdleTimeout    time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	UseTLS        bool
	TLSSkipVerify bool
	TLSCertPath   string
}

// DefaultOptions returns options for a local Redis
func DefaultOptions() Options {
	return Options{
		URI:            "redis://localhost:6379/",
		MaxConnections: 10,
		MaxIdle:        2,
		IdleTimeout:    240 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// target is a parsed connection URI
type target struct {
	network  string
	address  string
	password string
	db       string
	tls      bool
}

// NewPool creates a Redis connection pool. Connections are dialed lazily.
func NewPool(options Options) *redis.Pool {
	return &redis.Pool{
		MaxActive:   options.MaxConnections,
		MaxIdle:     options.MaxIdle,
		IdleTimeout: options.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			return Dial(options)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Dial establishes a single Redis connection
func Dial(options Options) (redis.Conn, error) {
	uri := Redact(options.URI)

	t, err := parseURI(options.URI)
	if err != nil {
		return nil, pqerrors.NewConnectionError(uri, err)
	}

	dialOptions := []redis.DialOption{
		redis.DialConnectTimeout(options.ConnectTimeout),
		redis.DialReadTimeout(options.ReadTimeout),
		redis.DialWriteTimeout(options.WriteTimeout),
	}

	if t.network == "tcp" && (t.tls || options.UseTLS) {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: options.TLSSkipVerify,
		}
		if options.TLSCertPath != "" {
			pool, err := LoadCertPool(options.TLSCertPath)
			if err != nil {
				return nil, err
			}
			tlsConfig.RootCAs = pool
		}
		dialOptions = append(dialOptions,
			redis.DialUseTLS(true),
			redis.DialTLSConfig(tlsConfig),
		)
	}

	if t.password != "" {
		dialOptions = append(dialOptions, redis.DialPassword(t.password))
	}

	conn, err := redis.Dial(t.network, t.address, dialOptions...)
	if err != nil {
		return nil, pqerrors.NewConnectionError(uri, fmt.Errorf("failed to connect: %w", err))
	}

	if t.db != "" {
		if _, err := conn.Do("SELECT", t.db); err != nil {
			conn.Close()
			return nil, pqerrors.NewConnectionError(uri, fmt.Errorf("failed to select database: %w", err))
		}
	}

	return conn, nil
}

func parseURI(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("invalid URI: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		t := target{
			network: "tcp",
			address: u.Host,
			tls:     u.Scheme == "rediss",
		}
		if u.User != nil {
			t.password, _ = u.User.Password()
		}
		if len(u.Path) > 1 {
			t.db = u.Path[1:]
		}
		return t, nil
	case "unix":
		return target{network: "unix", address: u.Path}, nil
	default:
		return target{}, ErrInvalidScheme
	}
}

// Redact hides the password of a connection URI
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}

// LoadCertPool loads a certificate pool from a file
func LoadCertPool(certPath string) (*x509.CertPool, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file %q: %w", certPath, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		return nil, fmt.Errorf("failed to append certs from %q", certPath)
	}

	return rootCAs, nil
}
