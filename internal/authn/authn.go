// Package authn authenticates a freshly connected client against one of
// three methods: "none" (anonymous), "basic" (HTTP Basic-style credentials
// checked against an in-memory htpasswd table) or "ldap" (simple bind
// against a directory server).
package authn

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MethodNone authenticates every client as "nobody".
	MethodNone = "none"
	// MethodBasic checks base64("user:password") credentials against the
	// htpasswd table.
	MethodBasic = "basic"
	// MethodLDAP checks base64("user:password") credentials via an LDAP
	// simple bind.
	MethodLDAP = "ldap"
)

// LDAPConfig configures the simple-bind check used by MethodLDAP.
type LDAPConfig struct {
	// URL is an ldap:// or ldaps:// address.
	URL string
	// UserDNTemplate turns a username into a bind DN; "%s" is replaced
	// with the username, e.g. "uid=%s,ou=people,dc=example,dc=com".
	UserDNTemplate string
	// StartTLS upgrades a plain ldap:// connection before binding.
	StartTLS bool
}

// Manager authenticates AuthenticationRequests. It is safe for concurrent
// use: the htpasswd table is guarded by a RWMutex so a SIGHUP reload never
// races an in-flight authentication.
type Manager struct {
	mu       sync.RWMutex
	htpasswd map[string][]byte // user -> bcrypt hash
	ldap     *LDAPConfig
	dialLDAP func(url string) (ldapConn, error)
}

type ldapConn interface {
	Bind(username, password string) error
	Close() error
}

func dialLDAPReal(url string) (ldapConn, error) {
	conn, err := ldap.DialURL(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// New returns a Manager with the given htpasswd table (may be nil/empty)
// and optional LDAP config (nil disables MethodLDAP).
func New(htpasswd map[string][]byte, ldapConfig *LDAPConfig) *Manager {
	if htpasswd == nil {
		htpasswd = make(map[string][]byte)
	}
	return &Manager{
		htpasswd: htpasswd,
		ldap:     ldapConfig,
		dialLDAP: dialLDAPReal,
	}
}

// ReloadHtpasswd atomically replaces the htpasswd table, e.g. on SIGHUP.
func (m *Manager) ReloadHtpasswd(htpasswd map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.htpasswd = htpasswd
}

// Authenticate verifies credentials for method and returns the
// authenticated username.
func (m *Manager) Authenticate(method string, credentials []byte) (string, error) {
	switch method {
	case MethodNone:
		return "nobody", nil
	case MethodBasic:
		return m.authenticateBasic(credentials)
	case MethodLDAP:
		return m.authenticateLDAP(credentials)
	default:
		return "", fmt.Errorf("authn: unsupported method %q", method)
	}
}

func decodeUserPassword(credentials []byte) (user, password string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(string(credentials))
	if err != nil {
		return "", "", fmt.Errorf("authn: invalid base64 credentials: %w", err)
	}
	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("authn: credentials missing ':' separator")
	}
	return user, password, nil
}

func (m *Manager) authenticateBasic(credentials []byte) (string, error) {
	user, password, err := decodeUserPassword(credentials)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	hash, ok := m.htpasswd[user]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("authn: unknown user %q", user)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", fmt.Errorf("authn: password mismatch for %q", user)
	}

	return user, nil
}

func (m *Manager) authenticateLDAP(credentials []byte) (string, error) {
	if m.ldap == nil {
		return "", fmt.Errorf("authn: ldap method not configured")
	}

	user, password, err := decodeUserPassword(credentials)
	if err != nil {
		return "", err
	}

	conn, err := m.dialLDAP(m.ldap.URL)
	if err != nil {
		return "", fmt.Errorf("authn: ldap dial: %w", err)
	}
	defer conn.Close()

	if m.ldap.StartTLS {
		if starter, ok := conn.(interface {
			StartTLS(*tls.Config) error
		}); ok {
			if err := starter.StartTLS(&tls.Config{InsecureSkipVerify: true}); err != nil {
				return "", fmt.Errorf("authn: ldap starttls: %w", err)
			}
		}
	}

	dn := fmt.Sprintf(m.ldap.UserDNTemplate, user)
	if err := conn.Bind(dn, password); err != nil {
		return "", fmt.Errorf("authn: ldap bind failed for %q: %w", user, err)
	}

	return user, nil
}

// HashPassword returns the bcrypt hash used to populate an htpasswd table
// entry.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
