// Package connector holds the descriptors of the sinks a DataHub topic can
// deliver to.
//
// The package is organized into sub-packages:
//
//   - core: the ConnectorType enum, the ConnectorConfig interface every
//     descriptor implements and the helpers that read fields out of a
//     decoded JSON node.
//   - registry: maps a ConnectorType to the factory of its descriptor.
//     Sinks register themselves in init.
//   - sinks: one package per descriptor (elasticsearch, odps, database).
//     Import sinks for its side effect to register all of them.
//
// # Wire form
//
// Descriptors travel as the Config member of a connector. List fields are
// written as JSON arrays. Older services send them as a string holding the
// array, and both forms are accepted on decode:
//
//	{"Index":"logs","IDFields":["id"],"TypeFields":"[\"type\"]"}
//
// Decoding a nil node fails with core.ErrMissingConfig. Fields absent from the
// node keep their current value, so a descriptor can be updated from a partial
// node.
package connector
