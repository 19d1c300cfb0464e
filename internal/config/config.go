package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Hard defaults, matching the usual RabbitMQ out-of-the-box setup.
const (
	DefaultHost        = "localhost"
	DefaultPort        = 5672
	DefaultUser        = "guest"
	DefaultPassword    = "guest"
	DefaultVirtualHost = "/"
	DefaultQueue       = "file_events"
)

// Config holds the resolved RabbitMQ connection settings. It is built
// once at startup and passed around read-only after that.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	VirtualHost string
	Queue       string
}

// StringOverride is a CLI-provided value plus whether it was actually
// set. Keeping the Set flag separate means an explicit empty string
// still wins over the environment.
type StringOverride struct {
	Value string
	Set   bool
}

// IntOverride is the same tri-state for integer settings, so an
// explicit --rabbit-port 0 is taken literally instead of falling back.
type IntOverride struct {
	Value int
	Set   bool
}

// Overrides carries the explicit CLI values for every connection setting.
type Overrides struct {
	Host        StringOverride
	Port        IntOverride
	Username    StringOverride
	Password    StringOverride
	VirtualHost StringOverride
	Queue       StringOverride
}

// Resolve builds a Config with per-field priority:
// explicit CLI value > environment variable > default.
//
// Environment variables: RABBITMQ_HOST, RABBITMQ_PORT, RABBITMQ_USER,
// RABBITMQ_PASSWORD, RABBITMQ_VHOST, RABBITMQ_QUEUE. A .env file in
// the working directory is loaded first when present.
func Resolve(o Overrides) (Config, error) {
	// No .env file is fine, the variables may already be exported.
	_ = godotenv.Load()

	port, err := resolvePort(o.Port)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Host:        resolveString(o.Host, "RABBITMQ_HOST", DefaultHost),
		Port:        port,
		Username:    resolveString(o.Username, "RABBITMQ_USER", DefaultUser),
		Password:    resolveString(o.Password, "RABBITMQ_PASSWORD", DefaultPassword),
		VirtualHost: resolveString(o.VirtualHost, "RABBITMQ_VHOST", DefaultVirtualHost),
		Queue:       resolveString(o.Queue, "RABBITMQ_QUEUE", DefaultQueue),
	}, nil
}

// URL renders the amqp:// connection string. Credentials use userinfo
// escaping (a space becomes %20, never +) and the virtual host is
// path-escaped, so the default vhost "/" becomes "%2F".
func (c Config) URL() string {
	return fmt.Sprintf("amqp://%s@%s:%d/%s",
		url.UserPassword(c.Username, c.Password).String(),
		c.Host,
		c.Port,
		url.PathEscape(c.VirtualHost),
	)
}

func resolveString(o StringOverride, envKey, defaultValue string) string {
	if o.Set {
		return o.Value
	}
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

func resolvePort(o IntOverride) (int, error) {
	if o.Set {
		return o.Value, nil
	}
	if value := os.Getenv("RABBITMQ_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid RABBITMQ_PORT %q: %w", value, err)
		}
		return port, nil
	}
	return DefaultPort, nil
}
