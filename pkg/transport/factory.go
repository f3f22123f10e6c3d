package transport

import (
	"github.com/ajitpratap0/datahub/pkg/config"
)

// Factory creates connections. Tests substitute it to fake the service.
type Factory interface {
	NewConnection() Connection
}

// ConnectionFactory builds DefaultConnections that share one configuration
// and option set.
type ConnectionFactory struct {
	conf *config.Config
	opts []Option
}

// NewConnectionFactory returns a factory for conf.
func NewConnectionFactory(conf *config.Config, opts ...Option) *ConnectionFactory {
	return &ConnectionFactory{conf: conf, opts: opts}
}

// NewConnection returns a fresh, unconnected connection.
func (f *ConnectionFactory) NewConnection() Connection {
	return NewDefaultConnection(f.conf, f.opts...)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func() Connection

// NewConnection calls f.
func (f FactoryFunc) NewConnection() Connection { return f() }
