package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_URLS")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=example,dc=com")

	cfg := Load()

	assert.NotNil(t, cfg)
	assert.Equal(t, "dc=example,dc=com", cfg.LDAP.BaseDN)
	assert.Equal(t, []string{"ldap://localhost:389"}, cfg.Connection.URLs)
	assert.Equal(t, 3, cfg.Connection.ProtocolVersion)
	assert.Equal(t, 1, cfg.Connection.MaxRetries)
	assert.Equal(t, "/data/ldaptoolkit-schema.db", cfg.SchemaCache.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadCustomURLPool(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_URLS")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_URLS", "ldap://a:389, ldap://b:389,ldaps://c:636")

	cfg := Load()

	assert.Equal(t, []string{"ldap://a:389", "ldap://b:389", "ldaps://c:636"}, cfg.Connection.URLs)
}

func TestLoadCustomProtocolVersion(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_PROTOCOL_VERSION")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_PROTOCOL_VERSION", "2")

	cfg := Load()

	assert.Equal(t, 2, cfg.Connection.ProtocolVersion)
}

func TestLoadBindConfig(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_BIND_DN")
		os.Unsetenv("LDAPTOOLKIT_BIND_PASSWORD")
		os.Unsetenv("LDAPTOOLKIT_ALLOW_ANONYMOUS_BIND")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_BIND_DN", "cn=admin,dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_BIND_PASSWORD", "secret")
	os.Setenv("LDAPTOOLKIT_ALLOW_ANONYMOUS_BIND", "true")

	cfg := Load()

	assert.Equal(t, "cn=admin,dc=test,dc=com", cfg.Bind.DN)
	assert.Equal(t, "secret", cfg.Bind.Password)
	assert.True(t, cfg.Bind.AllowAnonymous)
}

func TestLoadCustomSchemaCachePath(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_SCHEMA_CACHE_PATH")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_SCHEMA_CACHE_PATH", "/custom/path/schema.db")

	cfg := Load()

	assert.Equal(t, "/custom/path/schema.db", cfg.SchemaCache.Path)
}

func TestLoadLoggingConfig(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_LOG_LEVEL")
		os.Unsetenv("LDAPTOOLKIT_LOG_FORMAT")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_LOG_LEVEL", "debug")
	os.Setenv("LDAPTOOLKIT_LOG_FORMAT", "text")

	cfg := Load()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadArgon2Config(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_ARGON2_MEMORY")
		os.Unsetenv("LDAPTOOLKIT_ARGON2_ITERATIONS")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_ARGON2_MEMORY", "32768")
	os.Setenv("LDAPTOOLKIT_ARGON2_ITERATIONS", "4")

	cfg := Load()

	assert.Equal(t, uint32(32768), cfg.Security.Argon2Config.Memory)
	assert.Equal(t, uint32(4), cfg.Security.Argon2Config.Iterations)
}

func TestParseBaseDNComponents(t *testing.T) {
	tests := []struct {
		name     string
		baseDN   string
		expected []string
	}{
		{
			name:     "single component",
			baseDN:   "dc=com",
			expected: []string{"dc=com"},
		},
		{
			name:     "two components",
			baseDN:   "dc=example,dc=com",
			expected: []string{"dc=example", "dc=com"},
		},
		{
			name:     "three components",
			baseDN:   "ou=users,dc=example,dc=com",
			expected: []string{"ou=users", "dc=example", "dc=com"},
		},
		{
			name:     "with spaces",
			baseDN:   "ou=users , dc=example , dc=com",
			expected: []string{"ou=users", "dc=example", "dc=com"},
		},
		{
			name:     "empty string",
			baseDN:   "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseBaseDNComponents(tt.baseDN)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfigPrint(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")

	cfg := Load()

	assert.NotPanics(t, func() {
		cfg.Print()
	})
}

func TestConfigMaxRetries(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_MAX_RETRIES")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_MAX_RETRIES", "3")

	cfg := Load()

	assert.Equal(t, 3, cfg.Connection.MaxRetries)
}

func TestConfigSchemaCachePoolLimits(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("LDAPTOOLKIT_BASE_DN")
		os.Unsetenv("LDAPTOOLKIT_SCHEMA_CACHE_MAX_OPEN_CONNS")
		os.Unsetenv("LDAPTOOLKIT_SCHEMA_CACHE_MAX_IDLE_CONNS")
	})

	os.Setenv("LDAPTOOLKIT_BASE_DN", "dc=test,dc=com")
	os.Setenv("LDAPTOOLKIT_SCHEMA_CACHE_MAX_OPEN_CONNS", "50")
	os.Setenv("LDAPTOOLKIT_SCHEMA_CACHE_MAX_IDLE_CONNS", "10")

	cfg := Load()

	assert.Equal(t, 50, cfg.SchemaCache.MaxOpenConns)
	assert.Equal(t, 10, cfg.SchemaCache.MaxIdleConns)
}
