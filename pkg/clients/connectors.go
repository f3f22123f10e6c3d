package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
	_ "github.com/ajitpratap0/datahub/pkg/connector/sinks"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
	"github.com/ajitpratap0/datahub/pkg/logger"
	"github.com/ajitpratap0/datahub/pkg/transport"
)

// Connector is a sink attached to a topic.
type Connector struct {
	Type           core.ConnectorType
	State          string
	ColumnFields   []string
	Config         core.ConnectorConfig
	CreateTime     int64
	LastModifyTime int64
}

type validator interface {
	Validate() error
}

func connectorsResource(project, topic string) string {
	return fmt.Sprintf("/projects/%s/topics/%s/connectors", url.PathEscape(project), url.PathEscape(topic))
}

func connectorResource(project, topic string, t core.ConnectorType) string {
	return connectorsResource(project, topic) + "/" + url.PathEscape(t.String())
}

func checkNames(project, topic string) error {
	if project == "" {
		return errors.New(errors.ErrorTypeValidation, "project name is required")
	}
	if topic == "" {
		return errors.New(errors.ErrorTypeValidation, "topic name is required")
	}
	return nil
}

// GetConnector fetches the connector of type t and decodes its descriptor.
func (c *Client) GetConnector(ctx context.Context, project, topic string, t core.ConnectorType) (*Connector, error) {
	if err := checkNames(project, topic); err != nil {
		return nil, err
	}
	ctx = logger.WithTopic(ctx, project, topic)

	result, err := c.Do(ctx, transport.NewRequest(transport.MethodGet, connectorResource(project, topic, t)))
	if err != nil {
		return nil, err
	}
	return decodeConnector(result.Payload, t)
}

func decodeConnector(payload []byte, requested core.ConnectorType) (*Connector, error) {
	node, err := core.ParseNode(payload)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, core.MissingConfig()
	}

	conn := &Connector{Type: requested, ColumnFields: make([]string, 0)}
	var typeName string
	core.StringField(node, "Type", &typeName)
	if typeName != "" {
		conn.Type = core.ConnectorType(typeName)
	}
	core.StringField(node, "State", &conn.State)
	if err := core.StringListField(node, "ColumnFields", &conn.ColumnFields); err != nil {
		return nil, err
	}
	if err := core.Int64Field(node, "CreateTime", &conn.CreateTime); err != nil {
		return nil, err
	}
	if err := core.Int64Field(node, "LastModifyTime", &conn.LastModifyTime); err != nil {
		return nil, err
	}

	cfgNode, err := configNode(node["Config"])
	if err != nil {
		return nil, err
	}
	conn.Config, err = registry.Decode(conn.Type, cfgNode)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// configNode accepts the Config member as an object or as a string holding one.
func configNode(v interface{}) (core.JSONNode, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return t, nil
	case string:
		return core.ParseNode([]byte(t))
	default:
		return nil, errors.New(errors.ErrorTypeData, fmt.Sprintf("connector config must be an object, got %T", v))
	}
}

// CreateConnector attaches a sink described by cfg to the topic. Descriptors
// with a Validate method are checked before anything is sent.
func (c *Client) CreateConnector(ctx context.Context, project, topic string, columnFields []string, cfg core.ConnectorConfig) error {
	if err := checkNames(project, topic); err != nil {
		return err
	}
	ctx = logger.WithTopic(ctx, project, topic)
	if cfg == nil {
		return errors.Wrap(core.ErrMissingConfig, errors.ErrorTypeConfig, "connector config is required")
	}
	if v, ok := cfg.(validator); ok {
		if err := v.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "invalid "+cfg.Type().String()+" config")
		}
	}

	buf := json.GetBuffer()
	defer json.PutBuffer(buf)
	err := json.MarshalToWriter(buf, map[string]interface{}{
		"Action":       "create",
		"Type":         cfg.Type().String(),
		"ColumnFields": core.StringList(columnFields),
		"Config":       cfg.ToJSONNode(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode connector")
	}
	// the buffer goes back to the pool, the request keeps its own copy
	body := append([]byte(nil), bytes.TrimSpace(buf.Bytes())...)

	req := transport.NewRequest(transport.MethodPost, connectorResource(project, topic, cfg.Type()))
	req.Body = body
	_, err = c.Do(ctx, req)
	return err
}

// DeleteConnector removes the connector of type t from the topic.
func (c *Client) DeleteConnector(ctx context.Context, project, topic string, t core.ConnectorType) error {
	if err := checkNames(project, topic); err != nil {
		return err
	}
	ctx = logger.WithTopic(ctx, project, topic)
	_, err := c.Do(ctx, transport.NewRequest(transport.MethodDelete, connectorResource(project, topic, t)))
	return err
}

// ListConnectors returns the connector types attached to the topic.
func (c *Client) ListConnectors(ctx context.Context, project, topic string) ([]core.ConnectorType, error) {
	if err := checkNames(project, topic); err != nil {
		return nil, err
	}
	ctx = logger.WithTopic(ctx, project, topic)
	result, err := c.Do(ctx, transport.NewRequest(transport.MethodGet, connectorsResource(project, topic)))
	if err != nil {
		return nil, err
	}

	var body struct {
		Connectors []string `json:"Connectors"`
	}
	if err := json.Unmarshal(result.Payload, &body); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid connector list")
	}
	types := make([]core.ConnectorType, 0, len(body.Connectors))
	for _, name := range body.Connectors {
		types = append(types, core.ConnectorType(name))
	}
	return types, nil
}
