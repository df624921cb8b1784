// Package config loads the broker's command-line configuration: listen
// addresses, TLS material, authentication/authorization sources, and the
// optional ambient integrations (NATS audit sink, Redis auth throttle,
// Prometheus namespace).
package config

import (
	"flag"
	"fmt"

	"github.com/joho/godotenv"
)

// Config holds everything the listener needs to start the broker.
type Config struct {
	// PlainEndpoint is the length-prefixed TCP/TLS listen address.
	PlainEndpoint string
	// WebSocketEndpoint is the WebSocket listen address.
	WebSocketEndpoint string
	// AdminEndpoint serves /healthz and /metrics.
	AdminEndpoint string

	// TLSCertFile and TLSKeyFile enable TLS on PlainEndpoint when both set.
	TLSCertFile string
	TLSKeyFile  string

	// AuthorizationFile is an optional YAML authorization spec file.
	AuthorizationFile string
	// HtpasswdFile is an optional bcrypt htpasswd-style user/hash file.
	HtpasswdFile string

	// LDAPURL, LDAPUserDNTemplate and LDAPStartTLS configure the "ldap"
	// authentication method; LDAPURL empty disables it.
	LDAPURL            string
	LDAPUserDNTemplate string
	LDAPStartTLS       bool

	// NATSURL enables the optional audit sink when non-empty.
	NATSURL string
	// AuditSubject is the NATS subject lifecycle events publish to.
	AuditSubject string

	// RedisURL enables the optional Redis-backed auth throttle when
	// non-empty; otherwise an in-process throttle is used.
	RedisURL string

	// MetricsNamespace prefixes every exported Prometheus metric name.
	MetricsNamespace string

	// LogLevel and LogFormat configure internal/logging.
	LogLevel  string
	LogFormat string

	// EventBufferSize bounds each client's outbound event channel.
	EventBufferSize int
}

// Load parses args (typically os.Args[1:]) into a Config, first loading a
// .env file into the process environment if one is present in the working
// directory. No flag reads the environment: every value comes from args or
// from the flag's built-in default.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of a .env file is not an error

	fs := flag.NewFlagSet("squawkbus", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.PlainEndpoint, "listen-endpoint", "0.0.0.0:8558", "length-prefixed TCP/TLS listen address")
	fs.StringVar(&cfg.WebSocketEndpoint, "websocket-endpoint", "0.0.0.0:8559", "WebSocket listen address")
	fs.StringVar(&cfg.AdminEndpoint, "admin-endpoint", "0.0.0.0:8560", "admin HTTP listen address (/healthz, /metrics)")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", "", "TLS certificate file (enables TLS on listen-endpoint)")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", "", "TLS private key file")
	fs.StringVar(&cfg.AuthorizationFile, "authorization", "", "YAML authorization spec file")
	fs.StringVar(&cfg.HtpasswdFile, "htpasswd", "", "bcrypt htpasswd-style user/hash file")
	fs.StringVar(&cfg.LDAPURL, "ldap-url", "", "LDAP server URL (enables the ldap authentication method)")
	fs.StringVar(&cfg.LDAPUserDNTemplate, "ldap-user-dn-template", "uid=%s,ou=people,dc=example,dc=com", "LDAP bind DN template, %s is the username")
	fs.BoolVar(&cfg.LDAPStartTLS, "ldap-starttls", true, "upgrade the LDAP connection with StartTLS before binding")
	fs.StringVar(&cfg.NATSURL, "nats-url", "", "NATS URL (enables the optional audit sink)")
	fs.StringVar(&cfg.AuditSubject, "audit-subject", "squawkbus.audit", "NATS subject lifecycle events are published to")
	fs.StringVar(&cfg.RedisURL, "redis-url", "", "Redis URL (enables the Redis-backed auth throttle)")
	fs.StringVar(&cfg.MetricsNamespace, "metrics-namespace", "squawkbus", "Prometheus metric name prefix")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.IntVar(&cfg.EventBufferSize, "event-buffer-size", 32, "capacity of each client's outbound event channel")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: tls-cert-file and tls-key-file must both be set or both be empty")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("config: event-buffer-size must be positive")
	}
	return nil
}

// TLSEnabled reports whether PlainEndpoint should be served over TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// AuditEnabled reports whether the optional NATS audit sink is configured.
func (c *Config) AuditEnabled() bool {
	return c.NATSURL != ""
}

// RedisThrottleEnabled reports whether the optional Redis-backed auth
// throttle is configured.
func (c *Config) RedisThrottleEnabled() bool {
	return c.RedisURL != ""
}

// LDAPEnabled reports whether the "ldap" authentication method is usable.
func (c *Config) LDAPEnabled() bool {
	return c.LDAPURL != ""
}
