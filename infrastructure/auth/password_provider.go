package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost parameters written into each encoded hash
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams matches the 64 MB / 3 pass profile
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var errMalformedHash = errors.New("malformed argon2id hash")

// HashPassword encodes secret as $argon2id$v=19$m=..,t=..,p=..$<salt>$<hash>
func HashPassword(secret string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CheckPassword reports whether secret matches the encoded hash, comparing in constant time
func CheckPassword(secret, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version", errMalformedHash)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("%w: %v", errMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", errMalformedHash, err)
	}

	computed := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// PasswordAuthProvider verifies a secret against the argon2id hash stored as the user's
// credential reference
type PasswordAuthProvider struct {
	users interfaces.UserRepository
}

var _ interfaces.AuthProvider = (*PasswordAuthProvider)(nil)

// NewPasswordAuthProvider creates an AuthProvider backed by stored password hashes
func NewPasswordAuthProvider(users interfaces.UserRepository) *PasswordAuthProvider {
	return &PasswordAuthProvider{users: users}
}

// Verify returns the user id when the secret matches. Every rejection matches
// ErrPermissionDenied; a deactivated user also matches ErrUserInactive.
func (p *PasswordAuthProvider) Verify(ctx context.Context, credential entities.Credential) (string, error) {
	user, err := p.users.GetByID(ctx, credential.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || user.CredentialRef == "" {
		return "", fmt.Errorf("unknown credential: %w", entities.ErrPermissionDenied)
	}
	if !user.Active {
		return "", fmt.Errorf("%w: %w", entities.ErrPermissionDenied, entities.ErrUserInactive)
	}

	ok, err := CheckPassword(credential.Secret, user.CredentialRef)
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": user.ID,
			"error":   err,
		}).Error("Stored credential is unreadable")
		return "", fmt.Errorf("unreadable credential: %w", entities.ErrPermissionDenied)
	}
	if !ok {
		log.WithField("user_id", user.ID).Warn("Rejected credential")
		return "", fmt.Errorf("wrong secret: %w", entities.ErrPermissionDenied)
	}
	return user.ID, nil
}
