package core

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

// ConnectorType identifies the sink a connector delivers topic data to.
type ConnectorType string

const (
	ConnectorTypeSinkODPS  ConnectorType = "sink_odps"
	ConnectorTypeSinkADS   ConnectorType = "sink_ads"
	ConnectorTypeSinkES    ConnectorType = "sink_es"
	ConnectorTypeSinkMySQL ConnectorType = "sink_mysql"
)

func (t ConnectorType) String() string {
	return string(t)
}

// ParseConnectorType maps a (case-insensitive) name to a known ConnectorType.
func ParseConnectorType(s string) (ConnectorType, error) {
	switch t := ConnectorType(strings.ToLower(strings.TrimSpace(s))); t {
	case ConnectorTypeSinkODPS, ConnectorTypeSinkADS, ConnectorTypeSinkES, ConnectorTypeSinkMySQL:
		return t, nil
	default:
		return "", errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown connector type %q", s))
	}
}

// JSONNode is a decoded JSON object as produced by json.UnmarshalTree.
type JSONNode = map[string]interface{}

// ConnectorConfig is the descriptor carried in the Config field of a
// connector. Implementations convert to and from the service's JSON form.
type ConnectorConfig interface {
	// Type returns the connector type the descriptor belongs to.
	Type() ConnectorType
	// ToJSONNode returns the wire form of the descriptor.
	ToJSONNode() JSONNode
	// ParseFromJSONNode assigns every field present and non-null in node.
	// Absent fields keep their current values.
	ParseFromJSONNode(node JSONNode) error
}

// ErrMissingConfig is returned when a descriptor is parsed from a nil node.
var ErrMissingConfig = stderrors.New("missing config")

// ErrFieldParse is the cause of every error reported for a field value that
// cannot be converted.
var ErrFieldParse = stderrors.New("field parse failed")

func fieldParseError(key, raw string) error {
	return errors.Wrap(ErrFieldParse, errors.ErrorTypeData, fmt.Sprintf("parse %s failed: %s", key, raw)).
		WithDetail("field", key)
}

// MissingConfig returns the error reported for an absent connector config.
func MissingConfig() error {
	return errors.Wrap(ErrMissingConfig, errors.ErrorTypeConfig, "invalid response")
}

// ParseNode decodes data into a JSONNode. A JSON null decodes to a nil node.
func ParseNode(data []byte) (JSONNode, error) {
	tree, err := json.UnmarshalTree(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid connector config")
	}
	if tree == nil {
		return nil, nil
	}
	node, ok := tree.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, fmt.Sprintf("connector config must be a JSON object, got %T", tree))
	}
	return node, nil
}

// Text converts a decoded JSON value to its text form: strings as is, numbers
// and booleans in their literal form, null and containers as "".
func Text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer: // json.Number
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// StringField assigns node[key] to dst when it is present and non-null.
func StringField(node JSONNode, key string, dst *string) {
	if v, ok := node[key]; ok && v != nil {
		*dst = Text(v)
	}
}

// IntField assigns node[key] to dst when it is present and non-null.
func IntField(node JSONNode, key string, dst *int) error {
	var n int64
	if err := Int64Field(node, key, &n); err != nil {
		return err
	}
	if v, ok := node[key]; ok && v != nil {
		*dst = int(n)
	}
	return nil
}

// Int64Field assigns node[key] to dst when it is present and non-null. The
// value must be an integer literal; fractions and exponents are rejected.
func Int64Field(node JSONNode, key string, dst *int64) error {
	v, ok := node[key]
	if !ok || v == nil {
		return nil
	}
	text := Text(v)
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return fieldParseError(key, text)
	}
	*dst = n
	return nil
}

// BoolField assigns node[key] to dst when it is present and non-null.
func BoolField(node JSONNode, key string, dst *bool) error {
	v, ok := node[key]
	if !ok || v == nil {
		return nil
	}
	text := Text(v)
	b, err := strconv.ParseBool(text)
	if err != nil {
		return fieldParseError(key, text)
	}
	*dst = b
	return nil
}

// StringListField assigns node[key] to dst when it is present and non-null.
// The value is either a JSON array or a string holding a JSON array; any
// other parsed value yields an empty list.
func StringListField(node JSONNode, key string, dst *[]string) error {
	v, ok := node[key]
	if !ok || v == nil {
		return nil
	}

	if raw, isString := v.(string); isString {
		if strings.TrimSpace(raw) == "" {
			*dst = make([]string, 0)
			return nil
		}
		tree, err := json.UnmarshalTree([]byte(raw))
		if err != nil {
			return fieldParseError(key, raw)
		}
		v = tree
	}

	list := make([]string, 0)
	if items, isArray := v.([]interface{}); isArray {
		for _, item := range items {
			list = append(list, Text(item))
		}
	}
	*dst = list
	return nil
}

// StringList returns l as a JSON array value, never nil.
func StringList(l []string) []interface{} {
	out := make([]interface{}, 0, len(l))
	for _, s := range l {
		out = append(out, s)
	}
	return out
}
