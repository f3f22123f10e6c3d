package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/datahub/pkg/compression"
	"github.com/ajitpratap0/datahub/pkg/config"
	"github.com/ajitpratap0/datahub/pkg/connector/core"
	"github.com/ajitpratap0/datahub/pkg/connector/sinks/elasticsearch"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/transport"
)

// recordedRequest is what the fake service saw.
type recordedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Body    []byte
	RawBody []byte
}

type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := raw
	if alg, ok := compression.FromContentEncoding(r.Header.Get(transport.HeaderContentEncoding)); ok {
		body, _ = compression.Decompress(alg, raw)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:  r.Method,
		Path:    r.URL.EscapedPath(),
		Header:  r.Header.Clone(),
		Body:    body,
		RawBody: raw,
	})
	f.mu.Unlock()

	f.handler(w, r)
}

func (f *fakeService) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*config.Config), opts ...Option) (*Client, *fakeService) {
	t.Helper()
	svc := &fakeService{handler: handler}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.EnableMetrics = false
	if mutate != nil {
		mutate(cfg)
	}

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return client, svc
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(transport.HeaderContentType, transport.ContentTypeJSON)
		w.Header().Set(transport.HeaderRequestID, "srv-req-1")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg := config.DefaultConfig()
	_, err = NewClient(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDoSetsDefaultHeaders(t *testing.T) {
	client, svc := newTestClient(t, jsonResponse(http.StatusOK, `{}`), nil)

	req := transport.NewRequest(transport.MethodPost, "/projects/p1")
	req.Body = []byte(`{"Comment":"c"}`)
	result, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "OK", result.Message)
	assert.Equal(t, `{}`, string(result.Payload))
	assert.Equal(t, "srv-req-1", result.RequestID)

	got := svc.last()
	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, config.DefaultUserAgent, got.Header.Get(transport.HeaderUserAgent))
	assert.Equal(t, ClientVersion, got.Header.Get(transport.HeaderClientVersion))
	assert.Equal(t, transport.ContentTypeJSON, got.Header.Get(transport.HeaderContentType))
	assert.NotEmpty(t, got.Header.Get(transport.HeaderDate))
	_, err = uuid.Parse(got.Header.Get(transport.HeaderRequestID))
	assert.NoError(t, err)
	assert.Equal(t, `{"Comment":"c"}`, string(got.Body))

	// the caller's request is left alone
	assert.Empty(t, req.Headers)
}

func TestDoKeepsCallerHeaders(t *testing.T) {
	client, svc := newTestClient(t, jsonResponse(http.StatusOK, `{}`), nil)

	req := transport.NewRequest(transport.MethodGet, "/projects")
	req.SetHeader("user-agent", "custom/2.0")
	req.SetHeader(transport.HeaderRequestID, "fixed-id")
	_, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	got := svc.last()
	assert.Equal(t, "custom/2.0", got.Header.Get(transport.HeaderUserAgent))
	assert.Equal(t, "fixed-id", got.Header.Get(transport.HeaderRequestID))
	assert.Empty(t, got.Header.Get(transport.HeaderContentType))
}

func TestDoCompressesBody(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.Gzip, compression.Deflate, compression.LZ4, compression.Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			client, svc := newTestClient(t, jsonResponse(http.StatusOK, `{}`), func(c *config.Config) {
				c.Compression = string(alg)
			})

			payload := strings.Repeat(`{"k":"v"},`, 200)
			req := transport.NewRequest(transport.MethodPut, "/projects/p1/topics/t1/shards")
			req.Body = []byte(payload)
			_, err := client.Do(context.Background(), req)
			require.NoError(t, err)

			got := svc.last()
			assert.Equal(t, string(alg), got.Header.Get(transport.HeaderContentEncoding))
			assert.Equal(t, string(alg), got.Header.Get(transport.HeaderAcceptEncoding))
			assert.Equal(t, "2000", got.Header.Get(transport.HeaderContentRawSize))
			assert.Less(t, len(got.RawBody), len(payload))
			assert.Equal(t, payload, string(got.Body))
		})
	}
}

func TestDoDecodesCompressedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := compression.Compress(compression.Zstd, []byte(`{"ProjectName":"p1"}`))
		w.Header().Set(transport.HeaderContentEncoding, "zstd")
		_, _ = w.Write(data)
	}, func(c *config.Config) {
		c.Compression = "zstd"
	})

	result, err := client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/projects/p1"))
	require.NoError(t, err)
	assert.Equal(t, `{"ProjectName":"p1"}`, string(result.Payload))
}

func TestDoServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errors.ErrorType
		wantCode string
		wantMsg  string
	}{
		{
			name:     "json error body",
			status:   http.StatusNotFound,
			body:     `{"ErrorCode":"NoSuchProject","ErrorMessage":"Project does not exist","RequestId":"r-42"}`,
			wantType: errors.ErrorTypeService,
			wantCode: "NoSuchProject",
			wantMsg:  "status 404 NoSuchProject: Project does not exist (request id r-42)",
		},
		{
			name:     "throttled",
			status:   http.StatusTooManyRequests,
			body:     `{"ErrorCode":"LimitExceeded","ErrorMessage":"slow down"}`,
			wantType: errors.ErrorTypeRateLimit,
			wantCode: "LimitExceeded",
			wantMsg:  "status 429 LimitExceeded: slow down (request id srv-req-1)",
		},
		{
			name:     "plain text body",
			status:   http.StatusBadGateway,
			body:     `upstream down`,
			wantType: errors.ErrorTypeService,
			wantMsg:  "status 502: upstream down",
		},
		{
			name:     "no body",
			status:   http.StatusInternalServerError,
			wantType: errors.ErrorTypeService,
			wantMsg:  "status 500: Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, jsonResponse(tt.status, tt.body), nil)

			_, err := client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/projects/p1"))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), err.Error())
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestDoConnectionErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoint = "http://127.0.0.1:1"
	cfg.EnableMetrics = false
	client, err := NewClient(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	_, err = client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/"))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	_, err = client.Do(context.Background(), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

// countingFactory checks every connection is released.
type countingFactory struct {
	inner transport.Factory
	mu    sync.Mutex
	open  int
}

type countingConn struct {
	transport.Connection
	f *countingFactory
}

func (f *countingFactory) NewConnection() transport.Connection {
	return &countingConn{Connection: f.inner.NewConnection(), f: f}
}

func (c *countingConn) Connect(ctx context.Context, req *transport.Request) error {
	err := c.Connection.Connect(ctx, req)
	if err == nil {
		c.f.mu.Lock()
		c.f.open++
		c.f.mu.Unlock()
	}
	return err
}

func (c *countingConn) Disconnect() error {
	c.f.mu.Lock()
	c.f.open--
	c.f.mu.Unlock()
	return c.Connection.Disconnect()
}

func TestDoAlwaysDisconnects(t *testing.T) {
	svc := &fakeService{handler: jsonResponse(http.StatusConflict, `{"ErrorCode":"AlreadyExist"}`)}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.EnableMetrics = false
	factory := &countingFactory{inner: transport.NewConnectionFactory(cfg)}
	client, err := NewClient(cfg, WithConnectionFactory(factory), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/"))
		require.Error(t, err)
	}
	assert.Equal(t, 0, factory.open)
}

func TestDoTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var (
		mu          sync.Mutex
		traceparent string
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		traceparent = r.Header.Get("traceparent")
		mu.Unlock()
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}, nil, WithTracerProvider(tp), WithPropagator(propagation.TraceContext{}))

	_, err := client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/projects"))
	require.NoError(t, err)
	_, err = client.Do(context.Background(), transport.NewRequest(transport.MethodGet, "/missing"))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "datahub.request", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, spans[1].SpanContext().TraceID().String())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "GET", attrs["http.method"])
	assert.Equal(t, "/projects", attrs["datahub.resource"])
	assert.Equal(t, "200", attrs["http.status_code"])
}

func TestTestSchemeRoundTripper(t *testing.T) {
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"Connectors":["sink_es","sink_odps"]}`)),
			Request:    r,
		}, nil
	})

	cfg := config.DefaultConfig()
	cfg.Endpoint = "test://datahub"
	cfg.EnableMetrics = false
	client, err := NewClient(cfg,
		WithLogger(zaptest.NewLogger(t)),
		WithTransportOptions(transport.WithProtocol("test", rt)))
	require.NoError(t, err)

	types, err := client.ListConnectors(context.Background(), "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, []core.ConnectorType{core.ConnectorTypeSinkES, core.ConnectorTypeSinkODPS}, types)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestCreateConnectorRejectsInvalidDescriptor(t *testing.T) {
	client, svc := newTestClient(t, jsonResponse(http.StatusOK, `{}`), nil)

	err := client.CreateConnector(context.Background(), "p1", "t1", nil, elasticsearch.NewElasticSearchDesc())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Empty(t, svc.requests)
}
