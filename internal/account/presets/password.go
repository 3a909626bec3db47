package presets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/smarzola/ldaptoolkit/internal/entry"
	"github.com/smarzola/ldaptoolkit/pkg/config"
)

const (
	// schemeArgon2ID is the RFC 3112 userPassword scheme prefix this
	// package produces and accepts; any other prefix is rejected rather
	// than silently passed through.
	schemeArgon2ID     = "{ARGON2ID}"
	schemeArgon2IDName = "ARGON2ID"

	argon2VariantName = "argon2id"
	argon2Version     = 19
)

// PasswordHasher hashes and verifies userPassword values with argon2id,
// parameterized by an Argon2Config so memory/time cost can be tuned per
// deployment without touching the generator that calls it.
type PasswordHasher struct {
	cfg config.Argon2Config
}

// NewPasswordHasher builds a hasher from cfg.
func NewPasswordHasher(cfg config.Argon2Config) *PasswordHasher {
	return &PasswordHasher{cfg: cfg}
}

// ProcessPassword is what PasswordGenerator calls: a value already
// wrapped in a supported scheme prefix passes through (after a format
// check), otherwise it is treated as plaintext and hashed.
func (h *PasswordHasher) ProcessPassword(password string) (string, error) {
	if strings.HasPrefix(password, "{") {
		scheme, err := extractScheme(password)
		if err != nil {
			return "", err
		}
		if scheme != schemeArgon2IDName {
			return "", fmt.Errorf("unsupported password scheme: {%s} (supported: %s)", scheme, schemeArgon2ID)
		}
		if err := h.checkEncodedShape(password); err != nil {
			return "", fmt.Errorf("invalid hashed password format: %w", err)
		}
		return password, nil
	}
	return h.Hash(password)
}

// Hash produces "{ARGON2ID}$argon2id$v=19$m=...,t=...,p=...$salt$hash"
// from a plaintext password, with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	encoded := fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2VariantName, argon2Version,
		h.cfg.Memory, h.cfg.Iterations, h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return schemeArgon2ID + encoded, nil
}

// Verify reports whether password matches a previously hashed value
// produced by Hash.
func (h *PasswordHasher) Verify(password, hashedPassword string) (bool, error) {
	if !strings.HasPrefix(hashedPassword, schemeArgon2ID) {
		return false, fmt.Errorf("password hash missing scheme prefix")
	}

	fields, err := splitEncodedFields(hashedPassword)
	if err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return constantTimeEqual(got, want), nil
}

// VerifyUserPassword reads e's userPassword attribute and checks
// candidate against it, wiring Verify into the account-entry model
// instead of a bare string pair.
func VerifyUserPassword(h *PasswordHasher, e entry.Attributed, candidate string) (bool, error) {
	vs := e.GetValues("userPassword")
	if len(vs) == 0 {
		return false, fmt.Errorf("entry has no userPassword value")
	}
	return h.Verify(candidate, vs[0])
}

func (h *PasswordHasher) checkEncodedShape(hashedPassword string) error {
	fields, err := splitEncodedFields(hashedPassword)
	if err != nil {
		return err
	}
	_ = fields
	return nil
}

func splitEncodedFields(hashedPassword string) ([]string, error) {
	inner := strings.TrimPrefix(hashedPassword, schemeArgon2ID)
	fields := strings.Split(inner, "$")
	if len(fields) != 6 {
		return nil, fmt.Errorf("invalid hash structure (expected 6 fields, got %d)", len(fields))
	}
	if fields[1] != argon2VariantName {
		return nil, fmt.Errorf("unsupported hash algorithm: %s", fields[1])
	}
	return fields, nil
}

func extractScheme(hashedPassword string) (string, error) {
	if !strings.HasPrefix(hashedPassword, "{") {
		return "", fmt.Errorf("no scheme prefix found")
	}
	end := strings.Index(hashedPassword, "}")
	if end == -1 {
		return "", fmt.Errorf("malformed scheme prefix")
	}
	return hashedPassword[1:end], nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
