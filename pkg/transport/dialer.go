package transport

import (
	"context"
	"net"
	"time"
)

// dialer opens TCP connections bounded by the connect timeout and wraps them
// so that each socket read is bounded by the read timeout.
type dialer struct {
	connectTimeout time.Duration
	readTimeout    time.Duration
}

func (d *dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := &net.Dialer{
		Timeout:   d.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if d.readTimeout <= 0 {
		return conn, nil
	}
	return &deadlineConn{Conn: conn, timeout: d.readTimeout}, nil
}

// deadlineConn pushes the read deadline forward on every read and write, so a
// read only times out after timeout without any socket activity. Writes count
// as activity because the transport's reader is already parked on the socket
// while a streamed body is being uploaded.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return n, err
}
