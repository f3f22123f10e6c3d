// Package transport implements the single-request HTTP connection used by the
// DataHub client.
//
// A Connection carries exactly one request:
//
//	conn := transport.NewDefaultConnection(cfg)
//	if err := conn.Connect(ctx, req); err != nil {
//		return err
//	}
//	defer conn.Disconnect()
//
//	out, _ := conn.OutputStream()
//	out.Write(req.Body)
//	out.Close()
//
//	resp, err := conn.Response()
//	body, err := conn.InputStream()
//
// Every method but Connect fails with ErrInvalidConnection until Connect has
// succeeded, and again after Disconnect.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ChunkSize is the payload size of each chunk when chunked framing is used.
const ChunkSize = 1500 - 4

var (
	// ErrInvalidURI is returned when endpoint+resource is not an absolute URI.
	ErrInvalidURI = stderrors.New("invalid request URI")
	// ErrProtocolNotSupported is returned for schemes other than http, https and test.
	ErrProtocolNotSupported = stderrors.New("protocol not supported")
	// ErrInvalidConnection is returned when a connection is used before Connect,
	// after Disconnect, or when the response has no readable stream.
	ErrInvalidConnection = stderrors.New("invalid connection")
	// ErrAlreadyConnected is returned by Connect on a connection that is in use.
	ErrAlreadyConnected = stderrors.New("connection already in use")
	// ErrBodyTooLarge is returned when more bytes are written than the fixed Content-Length.
	ErrBodyTooLarge = stderrors.New("request body exceeds content length")
)

// Connection is one HTTP exchange with the service.
type Connection interface {
	// Connect prepares the exchange for req. No bytes are sent until the
	// output stream is opened or the response is requested.
	Connect(ctx context.Context, req *Request) error
	// OutputStream returns the writer for the request body.
	OutputStream() (io.WriteCloser, error)
	// Response sends the request if needed and returns status and headers.
	Response() (*Response, error)
	// InputStream returns the response payload, decompressed when the
	// server set a supported Content-Encoding.
	InputStream() (io.ReadCloser, error)
	// Disconnect releases the connection.
	Disconnect() error
}

// FramingMode is how the request body is delimited on the wire.
type FramingMode int

const (
	// FramingBuffered collects the body and sends it with a Content-Length
	// once the response is requested.
	FramingBuffered FramingMode = iota
	// FramingFixedLength streams exactly ContentLength bytes.
	FramingFixedLength
	// FramingChunked streams the body in chunks of ChunkSize bytes.
	FramingChunked
)

func (m FramingMode) String() string {
	switch m {
	case FramingBuffered:
		return "buffered"
	case FramingFixedLength:
		return "fixed-length"
	case FramingChunked:
		return "chunked"
	default:
		return fmt.Sprintf("FramingMode(%d)", int(m))
	}
}

// Framing is the body framing chosen by Connect.
type Framing struct {
	Mode          FramingMode
	ContentLength int64
	ChunkSize     int
}

// chooseFraming applies the framing rules: a payload selects fixed-length
// framing and a "Transfer-Encoding: chunked" header overrides it regardless of
// where it appears in the header map.
func chooseFraming(req *Request) Framing {
	framing := Framing{Mode: FramingBuffered}
	if req.Body != nil {
		framing = Framing{Mode: FramingFixedLength, ContentLength: int64(len(req.Body))}
	}
	if te, ok := req.Header(HeaderTransferEncoding); ok && strings.EqualFold(te, TransferEncodingChunked) {
		framing = Framing{Mode: FramingChunked, ContentLength: -1, ChunkSize: ChunkSize}
	}
	return framing
}
