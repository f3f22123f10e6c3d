package auth

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyFor(t *testing.T) {
	cfg := NewTLSConfig("dh.example.com", PolicyFor(true))
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "dh.example.com", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	cfg = NewTLSConfig("dh.example.com", PolicyFor(false))
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestNilPolicyVerifies(t *testing.T) {
	cfg := NewTLSConfig("", nil)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestCustomPolicy(t *testing.T) {
	called := false
	policy := CertPolicyFunc(func(cfg *tls.Config) {
		called = true
		cfg.NextProtos = []string{"http/1.1"}
	})

	cfg := NewTLSConfig("", policy)
	assert.True(t, called)
	assert.Equal(t, []string{"http/1.1"}, cfg.NextProtos)
}
