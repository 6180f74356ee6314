// Package hashing pseudonymizes sensitive identifiers before they reach the
// event store. Hashing is deterministic so the same fingerprint or IP always
// maps to the same token, which keeps per-device aggregation possible
// without storing the raw value.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"

	"trust-service/internal/config"
)

var ErrEmptyPepper = errors.New("hashing pepper is not configured")

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// Hasher derives stable tokens with Argon2id. The salt comes from the
// configured pepper plus a per-purpose context string, so tokens from
// different purposes never collide even for equal inputs.
type Hasher struct {
	params Argon2Params
	pepper string
}

func NewHasher(cfg *config.Config) (*Hasher, error) {
	if cfg.Hashing.Pepper == "" {
		return nil, ErrEmptyPepper
	}

	return &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Hashing.Argon2MemoryCost),
			Iterations:  uint32(cfg.Hashing.Argon2TimeCost),
			Parallelism: uint8(cfg.Hashing.Argon2Parallelism),
			KeyLength:   32,
		},
		pepper: cfg.Hashing.Pepper,
	}, nil
}

// HashFingerprint tokenizes a device fingerprint.
func (h *Hasher) HashFingerprint(fingerprint string) string {
	return h.hash(fingerprint, "fingerprint")
}

// HashIP tokenizes a client IP address.
func (h *Hasher) HashIP(ip string) string {
	return h.hash(ip, "ip")
}

// HashIdentifier tokenizes any other identifier, such as a rate-limit key.
func (h *Hasher) HashIdentifier(id string) string {
	return h.hash(id, "identifier")
}

// Verify reports whether plain hashes to token under the given purpose.
// Comparison is constant time.
func (h *Hasher) Verify(plain, context, token string) bool {
	computed := h.hash(plain, context)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(token)) == 1
}

func (h *Hasher) hash(data, context string) string {
	salt := sha256.Sum256([]byte(h.pepper + ":" + context))
	key := argon2.IDKey(
		[]byte(data),
		salt[:],
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)
	return base64.RawURLEncoding.EncodeToString(key)
}
