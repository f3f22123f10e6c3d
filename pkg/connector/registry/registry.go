package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/logger"
)

// Registry maps connector types to descriptor factories
type Registry struct {
	factories map[core.ConnectorType]Factory
	infos     map[core.ConnectorType]*ConnectorInfo
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Factory creates an empty descriptor with its defaults applied.
type Factory func() core.ConnectorConfig

// ConnectorInfo describes a registered connector type
type ConnectorInfo struct {
	Type        core.ConnectorType `json:"type" yaml:"type"`
	Description string             `json:"description" yaml:"description"`
	Fields      []string           `json:"fields" yaml:"fields"`
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.ConnectorType]Factory),
		infos:     make(map[core.ConnectorType]*ConnectorInfo),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register registers a descriptor factory for t
func (r *Registry) Register(t core.ConnectorType, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector %s already registered", t))
	}

	r.factories[t] = factory
	r.logger.Debug("connector registered", zap.Stringer("type", t))
	return nil
}

// RegisterInfo attaches descriptive metadata to a connector type
func (r *Registry) RegisterInfo(info *ConnectorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[info.Type] = info
}

// Info returns the metadata registered for t
func (r *Registry) Info(t core.ConnectorType) (*ConnectorInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[t]
	return info, ok
}

// Create returns a new descriptor for t
func (r *Registry) Create(t core.ConnectorType) (core.ConnectorConfig, error) {
	r.mu.RLock()
	factory, exists := r.factories[t]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("connector %s not registered", t))
	}
	return factory(), nil
}

// Decode creates a descriptor for t and fills it from node
func (r *Registry) Decode(t core.ConnectorType, node core.JSONNode) (core.ConnectorConfig, error) {
	cfg, err := r.Create(t)
	if err != nil {
		return nil, err
	}
	if err := cfg.ParseFromJSONNode(node); err != nil {
		return nil, err
	}
	return cfg, nil
}

// List returns the registered connector types in sorted order
func (r *Registry) List() []core.ConnectorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]core.ConnectorType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Has checks if t is registered
func (r *Registry) Has(t core.ConnectorType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[t]
	return exists
}

// Clear removes all registered connectors (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[core.ConnectorType]Factory)
	r.infos = make(map[core.ConnectorType]*ConnectorInfo)
}

// Global registry functions

// Register registers a descriptor factory in the global registry
func Register(t core.ConnectorType, factory Factory) error {
	return globalRegistry.Register(t, factory)
}

// RegisterInfo attaches metadata in the global registry
func RegisterInfo(info *ConnectorInfo) {
	globalRegistry.RegisterInfo(info)
}

// Info returns metadata from the global registry
func Info(t core.ConnectorType) (*ConnectorInfo, bool) {
	return globalRegistry.Info(t)
}

// Create creates a descriptor from the global registry
func Create(t core.ConnectorType) (core.ConnectorConfig, error) {
	return globalRegistry.Create(t)
}

// Decode creates and fills a descriptor from the global registry
func Decode(t core.ConnectorType, node core.JSONNode) (core.ConnectorConfig, error) {
	return globalRegistry.Decode(t, node)
}

// List returns registered types from the global registry
func List() []core.ConnectorType {
	return globalRegistry.List()
}

// Has checks if t is registered in the global registry
func Has(t core.ConnectorType) bool {
	return globalRegistry.Has(t)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
