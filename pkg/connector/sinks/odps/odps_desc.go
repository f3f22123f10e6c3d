// Package odps implements the sink_odps connector descriptor, which archives
// topic data into a MaxCompute (ODPS) table.
package odps

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

const (
	KeyProject         = "Project"
	KeyTable           = "Table"
	KeyOdpsEndpoint    = "OdpsEndpoint"
	KeyTunnelEndpoint  = "TunnelEndpoint"
	KeyAccessID        = "AccessId"
	KeyAccessKey       = "AccessKey"
	KeyPartitionMode   = "PartitionMode"
	KeyTimeRange       = "TimeRange"
	KeyPartitionConfig = "PartitionConfig"
)

// PartitionMode decides how records are assigned to table partitions.
type PartitionMode string

const (
	PartitionModeUserDefine PartitionMode = "USER_DEFINE"
	PartitionModeSystemTime PartitionMode = "SYSTEM_TIME"
	PartitionModeEventTime  PartitionMode = "EVENT_TIME"
)

// DefaultTimeRange is the partition width in minutes.
const DefaultTimeRange = 60

// OdpsDesc describes the MaxCompute table a topic is archived into.
type OdpsDesc struct {
	Project        string        `yaml:"project"`
	Table          string        `yaml:"table"`
	OdpsEndpoint   string        `yaml:"odps_endpoint"`
	TunnelEndpoint string        `yaml:"tunnel_endpoint"`
	AccessID       string        `yaml:"access_id"`
	AccessKey      string        `yaml:"access_key"`
	PartitionMode  PartitionMode `yaml:"partition_mode"`
	// TimeRange is the partition width in minutes for the time based modes.
	TimeRange int `yaml:"time_range"`
	// PartitionConfig maps partition columns to time format strings.
	PartitionConfig map[string]string `yaml:"partition_config"`
}

var _ core.ConnectorConfig = (*OdpsDesc)(nil)

func NewOdpsDesc() *OdpsDesc {
	return &OdpsDesc{
		PartitionMode:   PartitionModeUserDefine,
		TimeRange:       DefaultTimeRange,
		PartitionConfig: make(map[string]string),
	}
}

func (d *OdpsDesc) Type() core.ConnectorType {
	return core.ConnectorTypeSinkODPS
}

func (d *OdpsDesc) ToJSONNode() core.JSONNode {
	partitions := make(map[string]interface{}, len(d.PartitionConfig))
	for k, v := range d.PartitionConfig {
		partitions[k] = v
	}
	return core.JSONNode{
		KeyProject:         d.Project,
		KeyTable:           d.Table,
		KeyOdpsEndpoint:    d.OdpsEndpoint,
		KeyTunnelEndpoint:  d.TunnelEndpoint,
		KeyAccessID:        d.AccessID,
		KeyAccessKey:       d.AccessKey,
		KeyPartitionMode:   string(d.PartitionMode),
		KeyTimeRange:       d.TimeRange,
		KeyPartitionConfig: partitions,
	}
}

func (d *OdpsDesc) ParseFromJSONNode(node core.JSONNode) error {
	if node == nil {
		return core.MissingConfig()
	}

	core.StringField(node, KeyProject, &d.Project)
	core.StringField(node, KeyTable, &d.Table)
	core.StringField(node, KeyOdpsEndpoint, &d.OdpsEndpoint)
	core.StringField(node, KeyTunnelEndpoint, &d.TunnelEndpoint)
	core.StringField(node, KeyAccessID, &d.AccessID)
	core.StringField(node, KeyAccessKey, &d.AccessKey)

	var mode string
	core.StringField(node, KeyPartitionMode, &mode)
	if mode != "" {
		d.PartitionMode = PartitionMode(mode)
	}
	if err := core.IntField(node, KeyTimeRange, &d.TimeRange); err != nil {
		return err
	}
	return d.parsePartitionConfig(node)
}

// parsePartitionConfig accepts an object or a string holding one.
func (d *OdpsDesc) parsePartitionConfig(node core.JSONNode) error {
	v, ok := node[KeyPartitionConfig]
	if !ok || v == nil {
		return nil
	}
	if raw, isString := v.(string); isString {
		parsed, err := core.ParseNode([]byte(raw))
		if err != nil {
			return errors.New(errors.ErrorTypeData, fmt.Sprintf("parse %s failed: %s", KeyPartitionConfig, raw))
		}
		v = parsed
	}

	config := make(map[string]string)
	if obj, isObject := v.(map[string]interface{}); isObject {
		for k, item := range obj {
			config[k] = core.Text(item)
		}
	}
	d.PartitionConfig = config
	return nil
}

func (d *OdpsDesc) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSONNode())
}

func (d *OdpsDesc) UnmarshalJSON(data []byte) error {
	node, err := core.ParseNode(data)
	if err != nil {
		return err
	}
	return d.ParseFromJSONNode(node)
}

// PartitionColumns returns the configured partition columns in sorted order.
func (d *OdpsDesc) PartitionColumns() []string {
	cols := make([]string, 0, len(d.PartitionConfig))
	for k := range d.PartitionConfig {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (d *OdpsDesc) Validate() error {
	var result *multierror.Error
	if d.Project == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "project is required"))
	}
	if d.Table == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "table is required"))
	}
	if d.OdpsEndpoint == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "odps endpoint is required"))
	} else if u, err := url.Parse(d.OdpsEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "odps endpoint must be an absolute URL"))
	}
	if d.AccessID == "" || d.AccessKey == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "access id and key are required"))
	}

	switch d.PartitionMode {
	case PartitionModeUserDefine:
	case PartitionModeSystemTime, PartitionModeEventTime:
		if d.TimeRange <= 0 {
			result = multierror.Append(result, errors.Newf(errors.ErrorTypeValidation, "time range must be positive, got %d", d.TimeRange))
		}
	default:
		result = multierror.Append(result, errors.Newf(errors.ErrorTypeValidation, "unknown partition mode %q", d.PartitionMode))
	}
	return result.ErrorOrNil()
}
