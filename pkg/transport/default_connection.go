package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/ajitpratap0/datahub/pkg/auth"
	"github.com/ajitpratap0/datahub/pkg/compression"
	"github.com/ajitpratap0/datahub/pkg/config"
	"github.com/ajitpratap0/datahub/pkg/errors"
	"github.com/ajitpratap0/datahub/pkg/logger"
	"github.com/ajitpratap0/datahub/pkg/metrics"
)

// Option configures a DefaultConnection.
type Option func(*DefaultConnection)

// WithLogger sets the logger used by the connection.
func WithLogger(l *zap.Logger) Option {
	return func(c *DefaultConnection) {
		if l != nil {
			c.logger = l.With(zap.String("component", "transport"))
		}
	}
}

// WithMetrics records exchanges on m. A nil m disables metrics.
func WithMetrics(m *metrics.TransportMetrics) Option {
	return func(c *DefaultConnection) {
		c.metrics = m
	}
}

// WithCertPolicy replaces the certificate policy derived from ignore_https_certs.
func WithCertPolicy(p auth.CertPolicy) Option {
	return func(c *DefaultConnection) {
		c.policy = p
	}
}

// WithProtocol serves scheme (http, https or test) through rt instead of the
// network. It is how the test scheme is wired in harnesses.
func WithProtocol(scheme string, rt http.RoundTripper) Option {
	return func(c *DefaultConnection) {
		if c.protocols == nil {
			c.protocols = make(map[string]http.RoundTripper)
		}
		c.protocols[strings.ToLower(scheme)] = rt
	}
}

// DefaultConnection is the net/http implementation of Connection. It is not
// safe for concurrent use; each in-flight request needs its own instance.
type DefaultConnection struct {
	conf      *config.Config
	policy    auth.CertPolicy
	protocols map[string]http.RoundTripper
	logger    *zap.Logger
	metrics   *metrics.TransportMetrics

	ex *exchange
}

// exchange is the state owned by a connected DefaultConnection.
type exchange struct {
	request   *Request
	httpReq   *http.Request
	transport *http.Transport
	client    *http.Client
	cancel    context.CancelFunc
	framing   Framing
	started   time.Time

	out  *outputStream
	sent bool

	// written by the streaming goroutine, read only after done is closed
	done      chan struct{}
	asyncResp *http.Response
	asyncErr  error

	finished bool
	resp     *http.Response
	err      error
	body     io.ReadCloser
}

// NewDefaultConnection creates an unconnected connection for conf.
func NewDefaultConnection(conf *config.Config, opts ...Option) *DefaultConnection {
	if conf == nil {
		conf = config.DefaultConfig()
	}
	c := &DefaultConnection{
		conf:   conf,
		policy: auth.PolicyFor(conf.IgnoreHTTPSCerts),
		logger: logger.Get().With(zap.String("component", "transport")),
	}
	if conf.EnableMetrics {
		c.metrics = metrics.Default()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect validates the target URI, builds the transport and prepares the
// request framing. No bytes are sent yet.
func (c *DefaultConnection) Connect(ctx context.Context, req *Request) error {
	if req == nil {
		return errors.New(errors.ErrorTypeValidation, "request is required")
	}
	if c.ex != nil {
		return errors.Wrap(ErrAlreadyConnected, errors.ErrorTypeConnection, "connect called twice")
	}

	raw := c.conf.Endpoint + req.Resource
	c.logger.Debug("connecting", zap.String("uri", raw), zap.Stringer("request", req))

	u, err := url.Parse(raw)
	if err != nil {
		c.metrics.ObserveError("connect")
		c.logger.Error("invalid request URI", zap.String("uri", raw), zap.Error(err))
		return errors.Wrap(ErrInvalidURI, errors.ErrorTypeValidation, "request URI "+strconv.Quote(raw)+" does not parse").
			WithDetail("uri", raw)
	}
	if u.Scheme == "" {
		c.metrics.ObserveError("connect")
		err := errors.Wrap(ErrInvalidURI, errors.ErrorTypeValidation, "request URI (http or https) required").
			WithDetail("uri", raw)
		c.logger.Error(err.Message, zap.String("uri", raw))
		return err
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "test":
		if c.protocols[scheme] == nil {
			c.metrics.ObserveError("connect")
			return errors.Wrap(ErrProtocolNotSupported, errors.ErrorTypeCapability, "no round tripper registered for scheme "+u.Scheme)
		}
	default:
		c.metrics.ObserveError("connect")
		return errors.Wrap(ErrProtocolNotSupported, errors.ErrorTypeCapability, "scheme "+u.Scheme).
			WithDetail("uri", raw)
	}

	for k, v := range req.Headers {
		if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
			c.metrics.ObserveError("connect")
			return errors.New(errors.ErrorTypeValidation, "invalid request header "+strconv.Quote(k))
		}
	}

	method := strings.ToUpper(string(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		cancel()
		c.metrics.ObserveError("connect")
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to build request")
	}

	framing := chooseFraming(req)
	for k, v := range req.Headers {
		if strings.EqualFold(k, HeaderHost) {
			httpReq.Host = v
			continue
		}
		httpReq.Header.Set(k, v)
	}
	if framing.Mode == FramingChunked {
		httpReq.TransferEncoding = []string{TransferEncodingChunked}
	}
	if len(req.Headers) > 0 && c.logger.Core().Enabled(zap.DebugLevel) {
		c.logger.Debug("request headers", zap.Any("headers", redact(req.Headers)))
	}

	tr := c.newTransport()
	c.ex = &exchange{
		request:   req,
		httpReq:   httpReq,
		transport: tr,
		client: &http.Client{
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cancel:  cancel,
		framing: framing,
		started: time.Now(),
	}
	c.metrics.ConnectionOpened()
	return nil
}

func (c *DefaultConnection) newTransport() *http.Transport {
	d := &dialer{
		connectTimeout: c.conf.ConnectTimeoutDuration(),
		readTimeout:    c.conf.SocketTimeoutDuration(),
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		TLSClientConfig:       auth.NewTLSConfig("", c.policy),
		TLSHandshakeTimeout:   d.connectTimeout,
		ResponseHeaderTimeout: d.readTimeout,
		DisableKeepAlives:     true,
		DisableCompression:    true,
		MaxIdleConnsPerHost:   -1,
	}
	for scheme, rt := range c.protocols {
		tr.RegisterProtocol(scheme, rt)
	}
	return tr
}

// Framing reports the body framing selected by Connect.
func (c *DefaultConnection) Framing() (Framing, error) {
	if err := c.checkConnection(); err != nil {
		return Framing{}, err
	}
	return c.ex.framing, nil
}

// OutputStream returns the request body writer. With fixed-length and chunked
// framing the request is started here and the body streams to the server as
// it is written; Close marks the end of the body.
func (c *DefaultConnection) OutputStream() (io.WriteCloser, error) {
	if err := c.checkConnection(); err != nil {
		return nil, err
	}
	ex := c.ex
	if ex.out != nil {
		return ex.out, nil
	}
	if ex.sent {
		return nil, errors.New(errors.ErrorTypeConnection, "request already sent")
	}

	switch ex.framing.Mode {
	case FramingFixedLength:
		if ex.framing.ContentLength == 0 {
			ex.out = newBufferedStream(0)
			return ex.out, nil
		}
		ex.out = c.startStreaming(ex, ex.framing.ContentLength, 0)
	case FramingChunked:
		ex.out = c.startStreaming(ex, -1, ex.framing.ChunkSize)
	default:
		ex.out = newBufferedStream(-1)
	}
	return ex.out, nil
}

func (c *DefaultConnection) startStreaming(ex *exchange, length int64, chunk int) *outputStream {
	pr, pw := io.Pipe()
	ex.httpReq.Body = pr
	ex.httpReq.ContentLength = length
	ex.sent = true
	ex.done = make(chan struct{})

	go func() {
		defer close(ex.done)
		ex.asyncResp, ex.asyncErr = ex.client.Do(ex.httpReq)
	}()

	return &outputStream{
		w:         pw,
		pipe:      pw,
		remaining: length,
		chunk:     chunk,
		metrics:   c.metrics,
	}
}

// roundTrip sends the request if it has not been sent and waits for the
// response headers.
func (c *DefaultConnection) roundTrip() (*http.Response, error) {
	ex := c.ex
	if ex.finished {
		return ex.resp, ex.err
	}
	ex.finished = true

	var resp *http.Response
	var err error
	if ex.done != nil {
		// streaming: end the body and wait for the background round trip
		_ = ex.out.Close()
		<-ex.done
		resp, err = ex.asyncResp, ex.asyncErr
	} else {
		c.prepareBody(ex)
		ex.sent = true
		resp, err = ex.client.Do(ex.httpReq)
	}

	if err != nil {
		kind := errors.ErrorTypeConnection
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			kind = errors.ErrorTypeTimeout
		}
		c.metrics.ObserveError("request")
		c.logger.Error("request failed", zap.Stringer("request", ex.request), zap.Error(err))
		ex.resp, ex.err = nil, errors.Wrap(err, kind, "request "+ex.request.String()+" failed")
		return nil, ex.err
	}

	ex.resp = resp
	c.metrics.ObserveRequest(ex.httpReq.Method, resp.StatusCode, time.Since(ex.started))
	c.logger.Debug("response received",
		zap.Stringer("request", ex.request),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(ex.started)))
	return resp, nil
}

// prepareBody sets the body of a request that was not streamed: whatever was
// written to a buffered output stream, or the request payload itself when the
// output stream was never opened.
func (c *DefaultConnection) prepareBody(ex *exchange) {
	var body []byte
	if ex.out != nil {
		body = ex.out.buf.Bytes()
	} else {
		body = ex.request.Body
	}

	switch ex.framing.Mode {
	case FramingChunked:
		ex.httpReq.Body = &chunkReader{r: bytes.NewReader(body), size: ex.framing.ChunkSize}
		ex.httpReq.ContentLength = -1
	default:
		if len(body) == 0 {
			ex.httpReq.Body = http.NoBody
			ex.httpReq.ContentLength = 0
			return
		}
		ex.httpReq.Body = io.NopCloser(bytes.NewReader(body))
		ex.httpReq.ContentLength = int64(len(body))
	}
	c.metrics.AddBytesWritten(len(body))
}

// Response returns status and headers. Multi-valued headers are joined with
// "," in received order; names are canonicalized and the order of distinct
// fields is not preserved (see Response). Body carries the status line reason
// phrase.
func (c *DefaultConnection) Response() (*Response, error) {
	if err := c.checkConnection(); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip()
	if err != nil {
		return nil, err
	}

	out := NewResponse()
	out.Status = resp.StatusCode
	for k, vs := range resp.Header {
		out.Headers[k] = strings.Join(vs, ",")
	}
	out.Body = []byte(reasonPhrase(resp))
	return out, nil
}

// InputStream returns the success stream for 1xx-3xx responses and the error
// stream otherwise. Repeated calls return the same reader.
func (c *DefaultConnection) InputStream() (io.ReadCloser, error) {
	if err := c.checkConnection(); err != nil {
		return nil, err
	}
	ex := c.ex
	if ex.body != nil {
		return ex.body, nil
	}
	resp, err := c.roundTrip()
	if err != nil {
		return nil, err
	}

	stream := resp.Body
	if resp.StatusCode/100 >= 4 && stream == http.NoBody {
		stream = nil
	}
	if stream == nil {
		c.metrics.ObserveError("stream")
		return nil, errors.Wrap(ErrInvalidConnection, errors.ErrorTypeConnection, "response has no readable stream").
			WithDetail("status", resp.StatusCode)
	}

	if alg, ok := compression.FromContentEncoding(resp.Header.Get(HeaderContentEncoding)); ok {
		decoded, err := compression.NewReader(alg, stream)
		if err != nil {
			c.metrics.ObserveError("stream")
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode "+string(alg)+" response")
		}
		stream = &decodedBody{ReadCloser: decoded, raw: stream}
	}

	ex.body = stream
	return stream, nil
}

// Disconnect aborts any unfinished upload, closes the response and releases
// the transport. The connection can be connected again afterwards.
func (c *DefaultConnection) Disconnect() error {
	if err := c.checkConnection(); err != nil {
		return err
	}
	ex := c.ex
	c.ex = nil

	if ex.out != nil {
		ex.out.abort()
	}
	if ex.body != nil {
		_ = ex.body.Close()
	}
	if ex.resp != nil && ex.resp.Body != nil {
		_ = ex.resp.Body.Close()
	}
	ex.cancel()
	if ex.done != nil {
		<-ex.done
		if ex.asyncResp != nil && ex.asyncResp.Body != nil {
			_ = ex.asyncResp.Body.Close()
		}
	}
	ex.transport.CloseIdleConnections()

	c.metrics.ConnectionClosed()
	c.logger.Debug("disconnected", zap.Stringer("request", ex.request))
	return nil
}

func (c *DefaultConnection) checkConnection() error {
	if c.ex == nil {
		return errors.Wrap(ErrInvalidConnection, errors.ErrorTypeConnection, "connection is not open")
	}
	return nil
}

func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func redact(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, HeaderAuthorization) {
			v = "<redacted>"
		}
		out[k] = v
	}
	return out
}
