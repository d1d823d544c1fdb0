// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Floors for configurable argon2id parameters.
const (
	minArgon2Memory  = 8 * 1024 // KiB
	minArgon2Time    = 1
	minArgon2Threads = 1
	minArgon2SaltLen = 16
	minArgon2KeyLen  = 16

	// maxArgon2Memory bounds the cost a stored digest can ask Verify to pay.
	maxArgon2Memory = 4 * 1024 * 1024
)

const argon2idPrefix = "$argon2id$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest should be replaced on the next successful login.
	NeedsUpgrade(digest string) bool
}

// Argon2Params configures Argon2idHasher.
type Argon2Params struct {
	Memory     uint32 // KiB
	Time       uint32 // iterations
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:     64 * 1024,
		Time:       1,
		Threads:    4,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate checks p against the parameter floors.
func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < minArgon2Memory:
		return oops.Code("AUTH_INVALID_PARAMS").With("memory", p.Memory).Errorf("argon2 memory must be >= %d KiB", minArgon2Memory)
	case p.Memory > maxArgon2Memory:
		return oops.Code("AUTH_INVALID_PARAMS").With("memory", p.Memory).Errorf("argon2 memory must be <= %d KiB", maxArgon2Memory)
	case p.Time < minArgon2Time:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 time must be >= %d", minArgon2Time)
	case p.Threads < minArgon2Threads:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 threads must be >= %d", minArgon2Threads)
	case p.SaltLength < minArgon2SaltLen:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 salt length must be >= %d", minArgon2SaltLen)
	case p.KeyLength < minArgon2KeyLen:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 key length must be >= %d", minArgon2KeyLen)
	}
	return nil
}

// Argon2idHasher implements PasswordHasher using argon2id.
//
// Digests are PHC strings:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// Legacy digests (unprefixed base64 of a single SHA-256 pass) still verify
// and always report NeedsUpgrade.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with the given parameters.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id digest of the password with a fresh random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the password against an argon2id or legacy digest.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	if !strings.HasPrefix(digest, argon2idPrefix) {
		return verifyLegacySHA256(password, digest)
	}

	d, err := parseArgon2id(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade returns true for legacy digests and for argon2id digests
// produced with weaker parameters than h is configured with.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	if !strings.HasPrefix(digest, argon2idPrefix) {
		return true
	}
	d, err := parseArgon2id(digest)
	if err != nil {
		return true
	}
	return d.memory < h.params.Memory ||
		d.time < h.params.Time ||
		d.threads < h.params.Threads ||
		uint32(len(d.key)) < h.params.KeyLength
}

type argon2idDigest struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(digest string) (*argon2idDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code(CodeInvalidHash).With("version", version).Errorf("unsupported argon2 version")
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code(CodeInvalidHash).Errorf("threads value %d out of range", threads)
	}
	if memory == 0 || memory > maxArgon2Memory || time == 0 {
		return nil, oops.Code(CodeInvalidHash).Errorf("cost parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2idDigest{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}

// LegacySHA256Digest returns the unsalted digest format used by accounts
// created before argon2id. Only for importing and testing old records.
func LegacySHA256Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func verifyLegacySHA256(password, digest string) (bool, error) {
	stored, err := base64.StdEncoding.DecodeString(digest)
	if err != nil || len(stored) != sha256.Size {
		return false, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}
	computed := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(computed[:], stored) == 1, nil
}

var _ PasswordHasher = (*Argon2idHasher)(nil)
