// Package elasticsearch implements the sink_es connector descriptor.
package elasticsearch

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/datahub/pkg/auth"
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

// Wire keys of the descriptor.
const (
	KeyIndex      = "Index"
	KeyEndpoint   = "Endpoint"
	KeyUser       = "User"
	KeyPassword   = "Password"
	KeyIDFields   = "IDFields"
	KeyTypeFields = "TypeFields"
)

// ElasticSearchDesc tells the service which index of which cluster receives
// the records of a topic.
type ElasticSearchDesc struct {
	Index    string `yaml:"index"`
	Endpoint string `yaml:"endpoint"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// IDFields are the record fields concatenated into the document id.
	IDFields []string `yaml:"id_fields"`
	// TypeFields are the record fields that make up the document type.
	TypeFields []string `yaml:"type_fields"`
}

var _ core.ConnectorConfig = (*ElasticSearchDesc)(nil)

// NewElasticSearchDesc returns a descriptor with empty field lists.
func NewElasticSearchDesc() *ElasticSearchDesc {
	return &ElasticSearchDesc{
		IDFields:   make([]string, 0),
		TypeFields: make([]string, 0),
	}
}

func (d *ElasticSearchDesc) Type() core.ConnectorType {
	return core.ConnectorTypeSinkES
}

// ToJSONNode returns the wire form. List fields are plain JSON arrays.
func (d *ElasticSearchDesc) ToJSONNode() core.JSONNode {
	return core.JSONNode{
		KeyIndex:      d.Index,
		KeyEndpoint:   d.Endpoint,
		KeyUser:       d.User,
		KeyPassword:   d.Password,
		KeyIDFields:   core.StringList(d.IDFields),
		KeyTypeFields: core.StringList(d.TypeFields),
	}
}

// ParseFromJSONNode assigns the fields present in node. List fields may be
// arrays or strings holding a JSON array, the form older service versions
// return.
func (d *ElasticSearchDesc) ParseFromJSONNode(node core.JSONNode) error {
	if node == nil {
		return core.MissingConfig()
	}

	core.StringField(node, KeyIndex, &d.Index)
	core.StringField(node, KeyEndpoint, &d.Endpoint)
	core.StringField(node, KeyUser, &d.User)
	core.StringField(node, KeyPassword, &d.Password)
	if err := core.StringListField(node, KeyIDFields, &d.IDFields); err != nil {
		return err
	}
	if err := core.StringListField(node, KeyTypeFields, &d.TypeFields); err != nil {
		return err
	}
	d.ensureLists()
	return nil
}

func (d *ElasticSearchDesc) ensureLists() {
	if d.IDFields == nil {
		d.IDFields = make([]string, 0)
	}
	if d.TypeFields == nil {
		d.TypeFields = make([]string, 0)
	}
}

func (d *ElasticSearchDesc) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSONNode())
}

func (d *ElasticSearchDesc) UnmarshalJSON(data []byte) error {
	node, err := core.ParseNode(data)
	if err != nil {
		return err
	}
	return d.ParseFromJSONNode(node)
}

// Validate checks the fields the service requires to create the connector.
func (d *ElasticSearchDesc) Validate() error {
	var result *multierror.Error
	if d.Index == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "index is required"))
	}
	if d.Endpoint == "" {
		result = multierror.Append(result, errors.New(errors.ErrorTypeValidation, "endpoint is required"))
	}
	return result.ErrorOrNil()
}

// ClientConfig returns a go-elasticsearch configuration for the sink cluster.
func (d *ElasticSearchDesc) ClientConfig() elasticsearch.Config {
	cfg := elasticsearch.Config{
		Username: d.User,
		Password: d.Password,
	}
	if d.Endpoint != "" {
		cfg.Addresses = []string{d.Endpoint}
	}
	return cfg
}

// NewClient connects to the sink cluster directly, applying policy to TLS.
func (d *ElasticSearchDesc) NewClient(policy auth.CertPolicy) (*elasticsearch.Client, error) {
	cfg := d.ClientConfig()
	cfg.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: auth.NewTLSConfig("", policy),
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create elasticsearch client")
	}
	return client, nil
}
