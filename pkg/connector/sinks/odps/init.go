package odps

import (
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
)

func init() {
	registry.Register(core.ConnectorTypeSinkODPS, func() core.ConnectorConfig {
		return NewOdpsDesc()
	})

	registry.RegisterInfo(&registry.ConnectorInfo{
		Type:        core.ConnectorTypeSinkODPS,
		Description: "MaxCompute (ODPS) table sink",
		Fields: []string{
			KeyProject, KeyTable, KeyOdpsEndpoint, KeyTunnelEndpoint, KeyAccessID,
			KeyAccessKey, KeyPartitionMode, KeyTimeRange, KeyPartitionConfig,
		},
	})
}
