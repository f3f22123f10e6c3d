package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/datahub/pkg/config"
	"github.com/ajitpratap0/datahub/pkg/connector/sinks/elasticsearch"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/json"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "datahub v"+version)
	assert.Contains(t, out, "client version 1.1")
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types")
	require.NoError(t, err)
	for _, name := range []string{"sink_ads", "sink_es", "sink_mysql", "sink_odps"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "IDFields")
}

func TestEncodeDescriptor(t *testing.T) {
	out, err := encodeDescriptor("SINK_ES", []byte("index: logs\nendpoint: http://es:9200\nid_fields: [id]\n"))
	require.NoError(t, err)

	var node map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &node))
	assert.Equal(t, "logs", node[elasticsearch.KeyIndex])
	assert.Equal(t, []interface{}{"id"}, node[elasticsearch.KeyIDFields])
	assert.Equal(t, []interface{}{}, node[elasticsearch.KeyTypeFields])
}

func TestEncodeDescriptorErrors(t *testing.T) {
	_, err := encodeDescriptor("sink_kafka", []byte("{}"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = encodeDescriptor("sink_es", []byte("index: [unterminated"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDecodeCommand(t *testing.T) {
	path := writeFile(t, "es.json", `{"Index":"logs","Endpoint":"http://es:9200","IDFields":"[\"id\"]"}`)

	out, err := execute(t, "connector", "decode", "--type", "sink_es", path)
	require.NoError(t, err)
	assert.Contains(t, out, "index: logs")
	assert.Contains(t, out, "- id")
}

func TestEncodeCommand(t *testing.T) {
	path := writeFile(t, "db.yaml", "host: db\ntable: orders\n")

	out, err := execute(t, "connector", "encode", "--type", "sink_mysql", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"Host": "db"`)
	assert.Contains(t, out, `"Port": 3306`)
}

func TestDecodeDescriptorNull(t *testing.T) {
	_, err := decodeDescriptor("sink_odps", []byte("null"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestReadData(t *testing.T) {
	data, err := readData(nil, `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	data, err = readData(bytes.NewBufferString("from stdin"), "@-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(data))

	_, err = readData(nil, "@"+filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "client.yaml", "endpoint: http://from-file\nsocket_timeout: 5\n")

	cfg, err := loadConfig(&globalFlags{configFile: path, endpoint: "http://from-flag", logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.Endpoint)
	assert.Equal(t, 5, cfg.SocketTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	leveled := writeFile(t, "leveled.yaml", "endpoint: http://from-file\nlog:\n  level: warn\n")
	cfg, err = loadConfig(&globalFlags{configFile: leveled})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = loadConfig(&globalFlags{configFile: filepath.Join(t.TempDir(), "none.yaml")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRequestCommand(t *testing.T) {
	var gotMethod, gotPath, gotHeader string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotHeader = r.Method, r.URL.Path, r.Header.Get("X-Test")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("x-datahub-request-id", "req-1")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out, err := execute(t, "request", "post", "/projects/p1",
		"--endpoint", srv.URL, "-H", "X-Test: yes", "-d", `{"Comment":"c"}`)
	require.NoError(t, err)

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/projects/p1", gotPath)
	assert.Equal(t, "yes", gotHeader)
	assert.JSONEq(t, `{"Comment":"c"}`, string(gotBody))
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "request id: req-1")
	assert.Contains(t, out, `{"ok":true}`)
}

func TestRequestCommandBadHeader(t *testing.T) {
	_, err := execute(t, "request", "get", "/", "--endpoint", "http://127.0.0.1:1", "-H", "nocolon")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestLogLevelFlagDefaultsToConfig(t *testing.T) {
	flag := newRootCmd().PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestRequestCommandRejectsInvalidJSON(t *testing.T) {
	_, err := execute(t, "request", "post", "/", "--endpoint", "http://127.0.0.1:1", "-d", "not json")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datahub.yaml")

	out, err := execute(t, "config", "init", path, "--endpoint", "https://dh.example.com", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dh.example.com", cfg.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.DefaultSocketTimeout, cfg.SocketTimeout)

	_, err = execute(t, "config", "init", path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = execute(t, "config", "init", path, "--force", "--endpoint", "https://other.example.com")
	require.NoError(t, err)
	cfg, err = config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", cfg.Endpoint)
}
