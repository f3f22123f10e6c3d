// Package auth holds the TLS policies applied to transport connections before use
package auth

import (
	"crypto/tls"
)

// CertPolicy adjusts the TLS configuration of a connection before it is used.
type CertPolicy interface {
	Apply(cfg *tls.Config)
}

// CertPolicyFunc adapts a function to CertPolicy.
type CertPolicyFunc func(cfg *tls.Config)

// Apply calls f(cfg).
func (f CertPolicyFunc) Apply(cfg *tls.Config) {
	f(cfg)
}

// IgnoreCerts disables server certificate and host name verification.
var IgnoreCerts CertPolicy = CertPolicyFunc(func(cfg *tls.Config) {
	cfg.InsecureSkipVerify = true //nolint:gosec // opt-in through ignore_https_certs
})

// VerifyCerts leaves the default verification in place.
var VerifyCerts CertPolicy = CertPolicyFunc(func(cfg *tls.Config) {
	cfg.InsecureSkipVerify = false
})

// PolicyFor returns IgnoreCerts when ignore is set and VerifyCerts otherwise.
func PolicyFor(ignore bool) CertPolicy {
	if ignore {
		return IgnoreCerts
	}
	return VerifyCerts
}

// NewTLSConfig builds the client TLS configuration for a connection and runs
// policy over it. A nil policy verifies certificates.
func NewTLSConfig(serverName string, policy CertPolicy) *tls.Config {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if policy == nil {
		policy = VerifyCerts
	}
	policy.Apply(cfg)
	return cfg
}
