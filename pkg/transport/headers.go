package transport

// Header names used by the transport and the REST client.
const (
	HeaderAuthorization     = "Authorization"
	HeaderContentType       = "Content-Type"
	HeaderContentLength     = "Content-Length"
	HeaderContentEncoding   = "Content-Encoding"
	HeaderAcceptEncoding    = "Accept-Encoding"
	HeaderTransferEncoding  = "Transfer-Encoding"
	HeaderUserAgent         = "User-Agent"
	HeaderDate              = "Date"
	HeaderHost              = "Host"
	HeaderClientVersion     = "x-datahub-client-version"
	HeaderRequestID         = "x-datahub-request-id"
	HeaderContentRawSize    = "x-datahub-content-raw-size"
	HeaderRequestAction     = "x-datahub-request-action"
	ContentTypeJSON         = "application/json"
	TransferEncodingChunked = "chunked"
)
