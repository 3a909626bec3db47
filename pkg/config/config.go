package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Connection  ConnectionConfig
	Bind        BindConfig
	LDAP        LDAPConfig
	SchemaCache SchemaCacheConfig
	Logging     LoggingConfig
	Security    SecurityConfig
}

// ConnectionConfig governs the connection manager's server pool and
// retry policy.
type ConnectionConfig struct {
	URLs            []string // failover pool, tried round-robin
	ConnectTimeout  int      // seconds
	ProtocolVersion int      // 2 or 3
	MaxRetries      int      // loaded only; conn.Manager does not read it and always reconnects then re-issues a failed operation once
}

type BindConfig struct {
	DN             string
	Password       string
	AllowAnonymous bool
}

type LDAPConfig struct {
	BaseDN string
}

// SchemaCacheConfig configures the local persisted cache of a server's
// raw schema attributes (internal/schemacache).
type SchemaCacheConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

type SecurityConfig struct {
	PasswordAlgorithm string // argon2id
	Argon2Config      Argon2Config
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func Load() *Config {
	cfg := &Config{
		Connection: ConnectionConfig{
			URLs:            getEnvStringList("LDAPTOOLKIT_URLS", []string{"ldap://localhost:389"}),
			ConnectTimeout:  getEnvInt("LDAPTOOLKIT_CONNECT_TIMEOUT", 10),
			ProtocolVersion: getEnvInt("LDAPTOOLKIT_PROTOCOL_VERSION", 3),
			MaxRetries:      getEnvInt("LDAPTOOLKIT_MAX_RETRIES", 1),
		},
		Bind: BindConfig{
			DN:             getEnvString("LDAPTOOLKIT_BIND_DN", ""),
			Password:       getEnvString("LDAPTOOLKIT_BIND_PASSWORD", ""),
			AllowAnonymous: getEnvBool("LDAPTOOLKIT_ALLOW_ANONYMOUS_BIND", false),
		},
		LDAP: LDAPConfig{
			BaseDN: getEnvString("LDAPTOOLKIT_BASE_DN", "dc=example,dc=com"),
		},
		SchemaCache: SchemaCacheConfig{
			Path:            getEnvString("LDAPTOOLKIT_SCHEMA_CACHE_PATH", "/data/ldaptoolkit-schema.db"),
			MaxOpenConns:    getEnvInt("LDAPTOOLKIT_SCHEMA_CACHE_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("LDAPTOOLKIT_SCHEMA_CACHE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvInt("LDAPTOOLKIT_SCHEMA_CACHE_CONN_MAX_LIFETIME", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LDAPTOOLKIT_LOG_LEVEL", "info"),
			Format: getEnvString("LDAPTOOLKIT_LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			PasswordAlgorithm: "argon2id",
			Argon2Config: Argon2Config{
				Memory:      uint32(getEnvInt("LDAPTOOLKIT_ARGON2_MEMORY", 65536)),
				Iterations:  uint32(getEnvInt("LDAPTOOLKIT_ARGON2_ITERATIONS", 3)),
				Parallelism: uint8(getEnvInt("LDAPTOOLKIT_ARGON2_PARALLELISM", 2)),
				SaltLength:  uint32(getEnvInt("LDAPTOOLKIT_ARGON2_SALT_LENGTH", 16)),
				KeyLength:   uint32(getEnvInt("LDAPTOOLKIT_ARGON2_KEY_LENGTH", 32)),
			},
		},
	}

	if cfg.LDAP.BaseDN == "" {
		slog.Error("LDAPTOOLKIT_BASE_DN is required")
		os.Exit(1)
	}
	if len(cfg.Connection.URLs) == 0 {
		slog.Error("LDAPTOOLKIT_URLS must list at least one server")
		os.Exit(1)
	}

	return cfg
}

func (c *Config) Print() {
	slog.Info("Configuration loaded",
		"urls", c.Connection.URLs,
		"protocol_version", c.Connection.ProtocolVersion,
		"base_dn", c.LDAP.BaseDN,
		"bind_dn", c.Bind.DN,
		"allow_anonymous_bind", c.Bind.AllowAnonymous,
		"schema_cache_path", c.SchemaCache.Path,
		"log_level", c.Logging.Level,
		"log_format", c.Logging.Format,
	)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// ParseBaseDNComponents splits a base DN into its comma-separated RDN
// components.
func ParseBaseDNComponents(baseDN string) []string {
	components := []string{}
	parts := strings.Split(baseDN, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}
