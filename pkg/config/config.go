package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/datahub/pkg/compression"
	"github.com/ajitpratap0/datahub/pkg/logger"
)

const (
	// DefaultSocketTimeout is the default read timeout in seconds
	DefaultSocketTimeout = 60
	// DefaultSocketConnectTimeout is the default connect timeout in seconds
	DefaultSocketConnectTimeout = 10
	// DefaultUserAgent is sent when a request carries no User-Agent header
	DefaultUserAgent = "datahub-go-sdk/1.1"
)

// Config is the client configuration.
type Config struct {
	// Endpoint is the service base URL, e.g. https://dh-cn-hangzhou.aliyuncs.com
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// SocketTimeout bounds every socket read, in seconds
	SocketTimeout int `yaml:"socket_timeout" json:"socket_timeout"`
	// SocketConnectTimeout bounds dialing and the TLS handshake, in seconds
	SocketConnectTimeout int `yaml:"socket_connect_timeout" json:"socket_connect_timeout"`
	// IgnoreHTTPSCerts disables server certificate verification
	IgnoreHTTPSCerts bool `yaml:"ignore_https_certs" json:"ignore_https_certs"`
	// UserAgent overrides DefaultUserAgent
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// Compression selects the request body encoding (none, gzip, deflate, lz4, zstd)
	Compression string `yaml:"compression" json:"compression"`
	// EnableMetrics records prometheus transport metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`

	Log logger.Config `yaml:"log" json:"log"`
}

// DefaultConfig returns a configuration with every field but Endpoint set.
func DefaultConfig() *Config {
	return &Config{
		SocketTimeout:        DefaultSocketTimeout,
		SocketConnectTimeout: DefaultSocketConnectTimeout,
		IgnoreHTTPSCerts:     true,
		UserAgent:            DefaultUserAgent,
		Compression:          string(compression.None),
		EnableMetrics:        true,
		Log:                  logger.DefaultConfig(),
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Endpoint == "" {
		result = multierror.Append(result, fmt.Errorf("endpoint is required"))
	} else if u, err := url.Parse(c.Endpoint); err != nil {
		result = multierror.Append(result, fmt.Errorf("endpoint is not a valid URL: %w", err))
	} else if u.Scheme == "" {
		result = multierror.Append(result, fmt.Errorf("endpoint %q has no scheme", c.Endpoint))
	}

	if c.SocketTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("socket_timeout cannot be negative"))
	}
	if c.SocketConnectTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("socket_connect_timeout cannot be negative"))
	}

	if c.Compression != "" {
		if _, err := compression.ParseAlgorithm(c.Compression); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// SocketTimeoutDuration converts SocketTimeout to a duration.
func (c *Config) SocketTimeoutDuration() time.Duration {
	return time.Duration(c.SocketTimeout) * time.Second
}

// ConnectTimeoutDuration converts SocketConnectTimeout to a duration.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.SocketConnectTimeout) * time.Second
}

// CompressionAlgorithm returns the configured request compression, None when unset.
func (c *Config) CompressionAlgorithm() compression.Algorithm {
	alg, err := compression.ParseAlgorithm(c.Compression)
	if err != nil {
		return compression.None
	}
	return alg
}

// GetUserAgent returns UserAgent or DefaultUserAgent when unset.
func (c *Config) GetUserAgent() string {
	if strings.TrimSpace(c.UserAgent) == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}
