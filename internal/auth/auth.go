// Package auth hashes account credentials and carries the caller's credential
// through a request context.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/roach88/diceroll/internal/wager"
)

const kdfName = "argon2id"

// Params are the argon2id cost parameters recorded in every hash.
type Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
	SaltLen  uint32
	KeyLen   uint32
}

// DefaultParams are used for stored account credentials.
var DefaultParams = Params{
	Time:     2,
	MemoryKB: 64 * 1024,
	Threads:  1,
	SaltLen:  16,
	KeyLen:   32,
}

// FastParams keep tests and in-memory scenarios quick. Never use for
// persistent stores.
var FastParams = Params{
	Time:     1,
	MemoryKB: 8,
	Threads:  1,
	SaltLen:  16,
	KeyLen:   16,
}

var ErrMalformedHash = errors.New("auth: malformed credential hash")

// Hash derives an encoded argon2id hash of credential:
//
//	$argon2id$v=19$m=<KiB>,t=<time>,p=<threads>$<salt>$<key>
//
// Salt and key are unpadded standard base64.
func Hash(credential string, p Params) (string, error) {
	if credential == "" {
		return "", wager.Errorf(wager.ErrCodeInvalidArgument, "credential is empty")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(credential), salt, p.Time, p.MemoryKB, p.Threads, p.KeyLen)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		kdfName, argon2.Version, p.MemoryKB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether credential matches the encoded hash.
func Verify(credential, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != kdfName {
		return false, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}
	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Time, &p.Threads); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	got := argon2.IDKey([]byte(credential), salt, p.Time, p.MemoryKB, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

type credentialKey struct{}

// WithCredential returns a context carrying the caller's credential.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFrom extracts the credential placed by WithCredential.
func CredentialFrom(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(credentialKey{}).(string)
	return c, ok && c != ""
}

// Trusted authenticates every identity. It backs in-process callers such as
// the scenario harness, where there is no remote party to check.
type Trusted struct{}

// Authenticate implements the controller's authenticator.
func (Trusted) Authenticate(context.Context, wager.Identity) error {
	return nil
}
