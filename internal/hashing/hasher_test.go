package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-service/internal/config"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	cfg := &config.Config{}
	cfg.Hashing.Pepper = "test-pepper"
	cfg.Hashing.Argon2MemoryCost = 1024
	cfg.Hashing.Argon2TimeCost = 1
	cfg.Hashing.Argon2Parallelism = 1

	h, err := NewHasher(cfg)
	require.NoError(t, err)
	return h
}

func TestNewHasher_RequiresPepper(t *testing.T) {
	cfg := &config.Config{}
	_, err := NewHasher(cfg)
	assert.ErrorIs(t, err, ErrEmptyPepper)
}

func TestHash_Deterministic(t *testing.T) {
	h := newTestHasher(t)

	assert.Equal(t, h.HashFingerprint("device-abc"), h.HashFingerprint("device-abc"))
	assert.Equal(t, h.HashIP("203.0.113.9"), h.HashIP("203.0.113.9"))
	assert.Equal(t, h.HashIdentifier("user-1"), h.HashIdentifier("user-1"))
}

func TestHash_PurposesDoNotCollide(t *testing.T) {
	h := newTestHasher(t)

	input := "same-input"
	fp := h.HashFingerprint(input)
	ip := h.HashIP(input)
	id := h.HashIdentifier(input)

	assert.NotEqual(t, fp, ip)
	assert.NotEqual(t, fp, id)
	assert.NotEqual(t, ip, id)
}

func TestHash_DistinctInputsDistinctTokens(t *testing.T) {
	h := newTestHasher(t)
	assert.NotEqual(t, h.HashFingerprint("device-a"), h.HashFingerprint("device-b"))
}

func TestVerify(t *testing.T) {
	h := newTestHasher(t)

	token := h.HashFingerprint("device-abc")
	assert.True(t, h.Verify("device-abc", "fingerprint", token))
	assert.False(t, h.Verify("device-xyz", "fingerprint", token))
	assert.False(t, h.Verify("device-abc", "ip", token))
}
