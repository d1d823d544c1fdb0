// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 256 bits
	ResetTokenTTL   = time.Hour // validity of an issued token
)

// GenerateResetToken creates a random reset token and its hash.
// Returns (plaintext_token, sha256_hex_hash, error).
// The plaintext goes to the user; only the hash is persisted.
func GenerateResetToken() (token, hash string, err error) {
	raw := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code(CodeTokenGenerate).Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the hex SHA-256 of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
