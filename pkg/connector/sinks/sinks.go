// Package sinks registers every sink descriptor with the connector registry.
// Import it for its side effects.
package sinks

import (
	_ "github.com/ajitpratap0/datahub/pkg/connector/sinks/database"
	_ "github.com/ajitpratap0/datahub/pkg/connector/sinks/elasticsearch"
	_ "github.com/ajitpratap0/datahub/pkg/connector/sinks/odps"
)
