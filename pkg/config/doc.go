// Package config holds the client configuration consumed by the transport and
// the REST client.
//
// # Usage
//
//	cfg, err := config.LoadConfig("datahub.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// or programmatically:
//
//	cfg := config.DefaultConfig()
//	cfg.Endpoint = "https://dh-cn-hangzhou.aliyuncs.com"
//	cfg.SocketTimeout = 30
//
// # Environment Variable Substitution
//
// Values of the form ${VAR_NAME} are replaced with the environment before the
// YAML is parsed:
//
//	# datahub.yaml
//	endpoint: ${DATAHUB_ENDPOINT}
//	socket_timeout: 60
//	socket_connect_timeout: 10
//	ignore_https_certs: true
//	compression: lz4
//	log:
//	  level: debug
//	  encoding: console
//
// Timeouts are whole seconds, matching the service's other SDKs. Zero disables
// the corresponding timeout.
package config
