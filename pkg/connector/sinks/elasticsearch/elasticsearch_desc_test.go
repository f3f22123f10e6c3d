package elasticsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/datahub/pkg/auth"
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/registry"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

func sampleDesc() *ElasticSearchDesc {
	d := NewElasticSearchDesc()
	d.Index = "logs-2024"
	d.Endpoint = "http://es.example.com:9200"
	d.User = "elastic"
	d.Password = "changeme"
	d.IDFields = []string{"id"}
	d.TypeFields = []string{"type", "source"}
	return d
}

func TestNewElasticSearchDescHasEmptyLists(t *testing.T) {
	d := NewElasticSearchDesc()
	assert.NotNil(t, d.IDFields)
	assert.NotNil(t, d.TypeFields)
	assert.Empty(t, d.IDFields)
	assert.Equal(t, core.ConnectorTypeSinkES, d.Type())
}

func TestToJSONNode(t *testing.T) {
	data, err := json.Marshal(sampleDesc().ToJSONNode())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"Index": "logs-2024",
		"Endpoint": "http://es.example.com:9200",
		"User": "elastic",
		"Password": "changeme",
		"IDFields": ["id"],
		"TypeFields": ["type", "source"]
	}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	in := sampleDesc()
	data, err := json.Marshal(in)
	require.NoError(t, err)

	out := NewElasticSearchDesc()
	require.NoError(t, json.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestParseDoubleEncodedLists(t *testing.T) {
	node, err := core.ParseNode([]byte(`{
		"Index": "logs-2024",
		"Endpoint": "http://es:9200",
		"IDFields": "[\"id\"]",
		"TypeFields": "[\"type\",\"source\"]"
	}`))
	require.NoError(t, err)

	d := NewElasticSearchDesc()
	require.NoError(t, d.ParseFromJSONNode(node))
	assert.Equal(t, "logs-2024", d.Index)
	assert.Equal(t, "http://es:9200", d.Endpoint)
	assert.Equal(t, []string{"id"}, d.IDFields)
	assert.Equal(t, []string{"type", "source"}, d.TypeFields)
}

func TestParseNilNode(t *testing.T) {
	d := NewElasticSearchDesc()
	err := d.ParseFromJSONNode(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfig)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	err = d.UnmarshalJSON([]byte(`null`))
	assert.ErrorIs(t, err, core.ErrMissingConfig)
}

func TestParsePartialNodeKeepsOtherFields(t *testing.T) {
	d := sampleDesc()
	require.NoError(t, d.ParseFromJSONNode(core.JSONNode{
		"Index":    "logs-2025",
		"Password": nil,
	}))

	want := sampleDesc()
	want.Index = "logs-2025"
	assert.Equal(t, want, d)
}

func TestParseScalarsAsText(t *testing.T) {
	node, err := core.ParseNode([]byte(`{"Index": 2024, "User": true, "IDFields": [1, "b", 2.5, null]}`))
	require.NoError(t, err)

	d := NewElasticSearchDesc()
	require.NoError(t, d.ParseFromJSONNode(node))
	assert.Equal(t, "2024", d.Index)
	assert.Equal(t, "true", d.User)
	assert.Equal(t, []string{"1", "b", "2.5", ""}, d.IDFields)
}

func TestParseListErrors(t *testing.T) {
	tests := []struct {
		name    string
		node    core.JSONNode
		wantErr string
		want    []string
	}{
		{
			name:    "unparsable string",
			node:    core.JSONNode{"IDFields": "[id"},
			wantErr: "parse IDFields failed: [id",
		},
		{
			name:    "unparsable type fields",
			node:    core.JSONNode{"TypeFields": "{"},
			wantErr: "parse TypeFields failed: {",
		},
		{
			name: "string holding an object",
			node: core.JSONNode{"IDFields": `{"a":1}`},
			want: []string{},
		},
		{
			name: "empty string",
			node: core.JSONNode{"IDFields": ""},
			want: []string{},
		},
		{
			name: "number",
			node: core.JSONNode{"IDFields": float64(3)},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDesc()
			err := d.ParseFromJSONNode(tt.node)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsType(err, errors.ErrorTypeData))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.IDFields)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, sampleDesc().Validate())

	err := NewElasticSearchDesc().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index is required")
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestClientConfig(t *testing.T) {
	cfg := sampleDesc().ClientConfig()
	assert.Equal(t, []string{"http://es.example.com:9200"}, cfg.Addresses)
	assert.Equal(t, "elastic", cfg.Username)
	assert.Equal(t, "changeme", cfg.Password)

	assert.Empty(t, NewElasticSearchDesc().ClientConfig().Addresses)

	client, err := sampleDesc().NewClient(auth.VerifyCerts)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestRegistered(t *testing.T) {
	assert.True(t, registry.Has(core.ConnectorTypeSinkES))

	cfg, err := registry.Decode(core.ConnectorTypeSinkES, core.JSONNode{"Index": "logs-2024"})
	require.NoError(t, err)
	d, ok := cfg.(*ElasticSearchDesc)
	require.True(t, ok)
	assert.Equal(t, "logs-2024", d.Index)
	assert.Empty(t, d.TypeFields)
}
