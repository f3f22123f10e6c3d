package transport

import (
	"bytes"
	stderrors "errors"
	"io"
	"sync"

	"github.com/ajitpratap0/datahub/pkg/metrics"
)

var errStreamClosed = stderrors.New("output stream closed")

// outputStream is the request body writer. It either buffers the body or
// feeds the pipe read by an in-flight round trip. With a chunk size set, the
// pipe only ever sees writes of exactly chunk bytes, except for the last one
// which is flushed by Close.
type outputStream struct {
	mu sync.Mutex

	w    io.Writer
	pipe *io.PipeWriter
	buf  bytes.Buffer

	// remaining is the number of bytes still allowed, -1 for unbounded.
	remaining int64
	// chunk is the size of every write on the pipe; 0 passes writes through.
	chunk  int
	closed bool

	metrics *metrics.TransportMetrics
}

func newBufferedStream(limit int64) *outputStream {
	s := &outputStream{remaining: limit}
	s.w = &s.buf
	return s
}

func (s *outputStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errStreamClosed
	}
	if s.remaining >= 0 && int64(len(p)) > s.remaining {
		return 0, ErrBodyTooLarge
	}

	if s.pipe != nil && s.chunk > 0 {
		s.buf.Write(p)
		for s.buf.Len() >= s.chunk {
			if err := s.flush(s.chunk); err != nil {
				return 0, err
			}
		}
		return len(p), nil
	}

	n, err := s.w.Write(p)
	if s.remaining >= 0 {
		s.remaining -= int64(n)
	}
	if s.pipe != nil {
		s.metrics.AddBytesWritten(n)
	}
	return n, err
}

// flush sends the next n buffered bytes as one write on the pipe.
func (s *outputStream) flush(n int) error {
	m, err := s.pipe.Write(s.buf.Next(n))
	s.metrics.AddBytesWritten(m)
	return err
}

// Close ends the body, sending any partial chunk first. It is safe to call
// more than once.
func (s *outputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.pipe == nil {
		return nil
	}
	if s.chunk > 0 && s.buf.Len() > 0 {
		if err := s.flush(s.buf.Len()); err != nil {
			_ = s.pipe.CloseWithError(err)
			return err
		}
	}
	return s.pipe.Close()
}

// abort fails the in-flight upload, if any. It does not take the lock so
// that it can unblock a Write stuck on the pipe.
func (s *outputStream) abort() {
	if s.pipe != nil {
		_ = s.pipe.CloseWithError(ErrInvalidConnection)
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// chunkReader hands out at most size bytes per Read. It deliberately does not
// implement io.WriterTo so the transport emits one chunk per Read.
type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.size > 0 && len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

func (c *chunkReader) Close() error { return nil }

// decodedBody closes both the decompressor and the raw response body.
type decodedBody struct {
	io.ReadCloser
	raw io.ReadCloser
}

func (d *decodedBody) Close() error {
	err := d.ReadCloser.Close()
	if rerr := d.raw.Close(); err == nil {
		err = rerr
	}
	return err
}
