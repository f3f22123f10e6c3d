package database

import (
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
)

func init() {
	fields := []string{KeyHost, KeyPort, KeyDatabase, KeyTable, KeyUser, KeyPassword, KeyIgnore}

	for _, kind := range []core.ConnectorType{core.ConnectorTypeSinkMySQL, core.ConnectorTypeSinkADS} {
		kind := kind
		registry.Register(kind, func() core.ConnectorConfig {
			return NewDatabaseDesc(kind)
		})
	}

	registry.RegisterInfo(&registry.ConnectorInfo{
		Type:        core.ConnectorTypeSinkMySQL,
		Description: "MySQL table sink",
		Fields:      fields,
	})
	registry.RegisterInfo(&registry.ConnectorInfo{
		Type:        core.ConnectorTypeSinkADS,
		Description: "AnalyticDB (MySQL protocol) table sink",
		Fields:      fields,
	})
}
