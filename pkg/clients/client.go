// Package clients provides the DataHub REST client. Each call runs on its
// own transport.Connection; nothing is pooled or retried.
package clients

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/datahub/pkg/compression"
	"github.com/ajitpratap0/datahub/pkg/config"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/logger"
	"github.com/ajitpratap0/datahub/pkg/transport"
)

// ClientVersion is sent in the x-datahub-client-version header.
const ClientVersion = "1.1"

const tracerName = "github.com/ajitpratap0/datahub/pkg/clients"

// Client issues requests against the DataHub REST API.
type Client struct {
	conf        *config.Config
	factory     transport.Factory
	logger      *zap.Logger
	tracer      trace.Tracer
	propagator  propagation.TextMapPropagator
	compression compression.Algorithm

	transportOpts []transport.Option
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger. It is passed on to the connections.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConnectionFactory replaces the factory that creates one connection per call.
func WithConnectionFactory(f transport.Factory) Option {
	return func(c *Client) {
		c.factory = f
	}
}

// WithTransportOptions passes opts to every connection of the default factory.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, opts...)
	}
}

// WithTracerProvider traces requests on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithPropagator injects trace context into request headers with p.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *Client) {
		c.propagator = p
	}
}

// Result is a completed exchange with a status below 400.
type Result struct {
	Status  int
	Headers map[string]string
	// Message is the reason phrase of the status line.
	Message string
	Payload []byte
	// RequestID is the id the service assigned to the request.
	RequestID string
}

// NewClient validates cfg and returns a client for it.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid client config")
	}

	c := &Client{
		conf:        cfg,
		logger:      logger.Get(),
		tracer:      otel.Tracer(tracerName),
		propagator:  otel.GetTextMapPropagator(),
		compression: cfg.CompressionAlgorithm(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "datahub_client"))

	if c.factory == nil {
		topts := append([]transport.Option{transport.WithLogger(c.logger)}, c.transportOpts...)
		c.factory = transport.NewConnectionFactory(cfg, topts...)
	}
	return c, nil
}

// Do sends req and reads the whole response. Statuses of 400 and above are
// returned as service errors. req is not modified.
func (c *Client) Do(ctx context.Context, req *transport.Request) (*Result, error) {
	if req == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "request is required")
	}

	ctx, span := c.tracer.Start(ctx, "datahub.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", string(req.Method)),
			attribute.String("datahub.resource", req.Resource),
		))
	defer span.End()

	out, err := c.prepare(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	requestID, _ := out.Header(transport.HeaderRequestID)
	span.SetAttributes(attribute.String("datahub.request_id", requestID))
	ctx = logger.WithRequestID(ctx, requestID)
	log := c.logger.With(append(logger.ContextFields(ctx), zap.Stringer("request", out))...)

	start := time.Now()
	result, err := c.exchange(ctx, out)
	if err != nil {
		log.Debug("request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", result.Status))
	if result.RequestID == "" {
		result.RequestID = requestID
	}

	if result.Status >= http.StatusBadRequest {
		err := newServiceError(result)
		log.Debug("service error", zap.Int("status", result.Status), zap.Error(err))
		recordError(span, err)
		return nil, err
	}

	log.Debug("request completed",
		zap.Int("status", result.Status),
		zap.Int("payload_bytes", len(result.Payload)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// prepare copies req and fills in the default headers and body encoding.
func (c *Client) prepare(ctx context.Context, req *transport.Request) (*transport.Request, error) {
	out := &transport.Request{
		Method:   req.Method,
		Resource: req.Resource,
		Headers:  make(map[string]string, len(req.Headers)+6),
		Body:     req.Body,
	}
	for k, v := range req.Headers {
		out.Headers[k] = v
	}

	setDefault(out, transport.HeaderUserAgent, c.conf.GetUserAgent())
	setDefault(out, transport.HeaderClientVersion, ClientVersion)
	setDefault(out, transport.HeaderRequestID, uuid.NewString())
	setDefault(out, transport.HeaderDate, time.Now().UTC().Format(http.TimeFormat))
	if out.Body != nil {
		setDefault(out, transport.HeaderContentType, transport.ContentTypeJSON)
	}
	c.propagator.Inject(ctx, propagation.MapCarrier(out.Headers))

	if c.compression == compression.None {
		return out, nil
	}
	setDefault(out, transport.HeaderAcceptEncoding, string(c.compression))
	if len(out.Body) == 0 {
		return out, nil
	}
	if _, encoded := out.Header(transport.HeaderContentEncoding); encoded {
		return out, nil
	}

	compressed, err := compression.Compress(c.compression, out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to compress request body")
	}
	out.SetHeader(transport.HeaderContentEncoding, string(c.compression))
	out.SetHeader(transport.HeaderContentRawSize, strconv.Itoa(len(out.Body)))
	out.Body = compressed
	return out, nil
}

// exchange runs one request on a fresh connection. The connection is
// released on every path.
func (c *Client) exchange(ctx context.Context, req *transport.Request) (result *Result, err error) {
	conn := c.factory.NewConnection()
	if err := conn.Connect(ctx, req); err != nil {
		return nil, err
	}
	defer func() {
		if derr := conn.Disconnect(); derr != nil && err == nil {
			err = derr
		}
	}()

	if req.Body != nil {
		w, err := conn.OutputStream()
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(w, bytes.NewReader(req.Body)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to write request body")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to finish request body")
		}
	}

	resp, err := conn.Response()
	if err != nil {
		return nil, err
	}
	result = &Result{
		Status:  resp.Status,
		Headers: resp.Headers,
		Message: string(resp.Body),
	}
	result.RequestID = resp.Header(transport.HeaderRequestID)

	in, err := conn.InputStream()
	switch {
	case errors.Is(err, transport.ErrInvalidConnection) && resp.Status >= http.StatusBadRequest:
		// error status without a payload
		return result, nil
	case err != nil:
		return nil, err
	}
	result.Payload, err = io.ReadAll(in)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response payload")
	}
	return result, nil
}

func setDefault(req *transport.Request, key, value string) {
	if _, ok := req.Header(key); !ok {
		req.Headers[key] = value
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
