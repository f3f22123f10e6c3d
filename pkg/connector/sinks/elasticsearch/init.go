package elasticsearch

import (
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
)

func init() {
	registry.Register(core.ConnectorTypeSinkES, func() core.ConnectorConfig {
		return NewElasticSearchDesc()
	})

	registry.RegisterInfo(&registry.ConnectorInfo{
		Type:        core.ConnectorTypeSinkES,
		Description: "Elasticsearch index sink",
		Fields:      []string{KeyIndex, KeyEndpoint, KeyUser, KeyPassword, KeyIDFields, KeyTypeFields},
	})
}
