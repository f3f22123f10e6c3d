// Package database implements the descriptors of the relational sinks,
// sink_mysql and sink_ads. Both speak the MySQL protocol.
package database

import (
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

const (
	KeyHost     = "Host"
	KeyPort     = "Port"
	KeyDatabase = "Database"
	KeyTable    = "Table"
	KeyUser     = "User"
	KeyPassword = "Password"
	KeyIgnore   = "Ignore"
)

// DefaultPort is the MySQL port used when none is configured.
const DefaultPort = 3306

// DatabaseDesc describes the table a topic is synchronized into.
type DatabaseDesc struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Ignore skips records the sink rejects instead of stopping the connector.
	Ignore bool `yaml:"ignore"`

	kind core.ConnectorType
}

var _ core.ConnectorConfig = (*DatabaseDesc)(nil)

// NewDatabaseDesc returns a descriptor for kind (sink_mysql or sink_ads).
func NewDatabaseDesc(kind core.ConnectorType) *DatabaseDesc {
	return &DatabaseDesc{Port: DefaultPort, kind: kind}
}

func (d *DatabaseDesc) Type() core.ConnectorType {
	if d.kind == "" {
		return core.ConnectorTypeSinkMySQL
	}
	return d.kind
}

func (d *DatabaseDesc) ToJSONNode() core.JSONNode {
	return core.JSONNode{
		KeyHost:     d.Host,
		KeyPort:     d.Port,
		KeyDatabase: d.Database,
		KeyTable:    d.Table,
		KeyUser:     d.User,
		KeyPassword: d.Password,
		KeyIgnore:   d.Ignore,
	}
}

func (d *DatabaseDesc) ParseFromJSONNode(node core.JSONNode) error {
	if node == nil {
		return core.MissingConfig()
	}

	core.StringField(node, KeyHost, &d.Host)
	core.StringField(node, KeyDatabase, &d.Database)
	core.StringField(node, KeyTable, &d.Table)
	core.StringField(node, KeyUser, &d.User)
	core.StringField(node, KeyPassword, &d.Password)
	if err := core.IntField(node, KeyPort, &d.Port); err != nil {
		return err
	}
	return core.BoolField(node, KeyIgnore, &d.Ignore)
}

func (d *DatabaseDesc) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSONNode())
}

func (d *DatabaseDesc) UnmarshalJSON(data []byte) error {
	node, err := core.ParseNode(data)
	if err != nil {
		return err
	}
	return d.ParseFromJSONNode(node)
}

func (d *DatabaseDesc) Validate() error {
	var result *multierror.Error
	if d.Host == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "host is required"))
	}
	if d.Port <= 0 || d.Port > 65535 {
		result = multierror.Append(result, errors.Newf(errors.ErrorTypeValidation, "port %d out of range", d.Port))
	}
	if d.Database == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "database is required"))
	}
	if d.Table == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "table is required"))
	}
	return result.ErrorOrNil()
}

// DriverConfig returns the go-sql-driver configuration for the sink database.
func (d *DatabaseDesc) DriverConfig() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	cfg.DBName = d.Database
	cfg.Timeout = 10 * time.Second
	cfg.ParseTime = true
	return cfg
}

// DSN returns the data source name of the sink database.
func (d *DatabaseDesc) DSN() string {
	return d.DriverConfig().FormatDSN()
}

// OpenDB returns a handle on the sink database. No connection is made until
// the handle is used.
func (d *DatabaseDesc) OpenDB() (*sql.DB, error) {
	connector, err := mysql.NewConnector(d.DriverConfig())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid database sink config")
	}
	return sql.OpenDB(connector), nil
}
