package transport

import (
	"fmt"
	"sort"
	"strings"
)

// HTTPMethod is the request method sent on a connection.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodHead   HTTPMethod = "HEAD"
)

// Request describes one call against the service. Resource is appended to the
// configured endpoint as is, so it normally starts with "/".
type Request struct {
	Method   HTTPMethod
	Resource string
	Headers  map[string]string
	// Body is nil when the request carries no payload.
	Body []byte
}

// NewRequest returns a request with an empty header map.
func NewRequest(method HTTPMethod, resource string) *Request {
	return &Request{
		Method:   method,
		Resource: resource,
		Headers:  make(map[string]string),
	}
}

// SetHeader sets a header, replacing any existing key that differs only in case.
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	for k := range r.Headers {
		if k != key && strings.EqualFold(k, key) {
			delete(r.Headers, k)
		}
	}
	r.Headers[key] = value
}

// Header returns the value of key, matched case-insensitively.
func (r *Request) Header(key string) (string, bool) {
	if v, ok := r.Headers[key]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Resource)
}

// Response is the status and header block of a completed exchange.
//
// Body holds the reason phrase of the status line ("OK", "Not Found"), which
// callers of the service SDKs have always received here. The payload itself is
// read from Connection.InputStream.
//
// Header names arrive in canonical form (Content-Type) and values of a
// repeated header are joined with "," in the order they were received. The
// order of distinct header fields is not kept: net/http parses the header
// block into a map before it reaches the connection. Use Keys for a stable
// iteration order.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Keys returns the header names in sorted order.
func (r *Response) Keys() []string {
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{Headers: make(map[string]string)}
}

// Header returns the value of key, matched case-insensitively.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
