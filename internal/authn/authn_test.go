package authn

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicCredentials(user, password string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(user + ":" + password)))
}

func TestAuthenticateNoneReturnsNobody(t *testing.T) {
	m := New(nil, nil)
	user, err := m.Authenticate(MethodNone, nil)
	require.NoError(t, err)
	assert.Equal(t, "nobody", user)
}

func TestAuthenticateBasicSucceedsWithMatchingPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	m := New(map[string][]byte{"joe": hash}, nil)
	user, err := m.Authenticate(MethodBasic, basicCredentials("joe", "s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "joe", user)
}

func TestAuthenticateBasicRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	m := New(map[string][]byte{"joe": hash}, nil)
	_, err = m.Authenticate(MethodBasic, basicCredentials("joe", "wrong"))
	assert.Error(t, err)
}

func TestAuthenticateBasicRejectsUnknownUser(t *testing.T) {
	m := New(nil, nil)
	_, err := m.Authenticate(MethodBasic, basicCredentials("ghost", "whatever"))
	assert.Error(t, err)
}

func TestAuthenticateBasicRejectsMalformedCredentials(t *testing.T) {
	m := New(nil, nil)
	_, err := m.Authenticate(MethodBasic, []byte("not-base64!!"))
	assert.Error(t, err)
}

func TestAuthenticateLDAPWithoutConfigErrors(t *testing.T) {
	m := New(nil, nil)
	_, err := m.Authenticate(MethodLDAP, basicCredentials("joe", "s3cret"))
	assert.Error(t, err)
}

func TestAuthenticateRejectsUnknownMethod(t *testing.T) {
	m := New(nil, nil)
	_, err := m.Authenticate("carrier-pigeon", nil)
	assert.Error(t, err)
}

type fakeLDAPConn struct {
	boundUser     string
	boundPassword string
	bindErr       error
}

func (c *fakeLDAPConn) Bind(username, password string) error {
	c.boundUser = username
	c.boundPassword = password
	return c.bindErr
}

func (c *fakeLDAPConn) Close() error { return nil }

func TestAuthenticateLDAPBindsWithTemplatedDN(t *testing.T) {
	fake := &fakeLDAPConn{}
	m := New(nil, &LDAPConfig{URL: "ldap://directory.example.com", UserDNTemplate: "uid=%s,ou=people,dc=example,dc=com"})
	m.dialLDAP = func(string) (ldapConn, error) { return fake, nil }

	user, err := m.Authenticate(MethodLDAP, basicCredentials("joe", "s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "joe", user)
	assert.Equal(t, "uid=joe,ou=people,dc=example,dc=com", fake.boundUser)
	assert.Equal(t, "s3cret", fake.boundPassword)
}
