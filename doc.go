// Package datahub is a client SDK for the DataHub streaming-data service.
//
// The module is split along the path a request takes:
//
//   - pkg/transport: one HTTP exchange per Connection, with fixed-length,
//     chunked or buffered request framing and decoded response streams.
//   - pkg/clients: the REST client that drives a fresh connection per call,
//     maps error payloads to typed errors and exposes the connector API.
//   - pkg/connector: connector descriptors (Elasticsearch, ODPS, MySQL and
//     ADS sinks) and the registry that decodes them by type.
//   - pkg/config, pkg/logger, pkg/errors, pkg/json, pkg/metrics,
//     pkg/observability: configuration, zap logging, typed errors, JSON,
//     prometheus metrics and OpenTelemetry tracing shared by the above.
//
// # Quick Start
//
//	cfg := config.DefaultConfig()
//	cfg.Endpoint = "https://dh-cn-hangzhou.aliyuncs.com"
//
//	client, err := clients.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	conn, err := client.GetConnector(ctx, "my_project", "my_topic", core.ConnectorTypeSinkES)
//	if err != nil {
//		return err
//	}
//	es := conn.Config.(*elasticsearch.ElasticSearchDesc)
//
// The cmd/datahub binary wraps the same client for the command line.
package datahub
