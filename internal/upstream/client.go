package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruslanbaba/Azure-Healthcare-Platform/internal/registry"
)

// Request carries everything needed to forward one attempt to a backend.
// It is request-scoped and never shared across inbound requests.
type Request struct {
	Method    string
	Path      string
	Query     string
	Header    http.Header
	Body      []byte
	ClientIP  string
	RequestID string
}

// Response is a fully buffered backend response. Any completed exchange,
// success or error status alike, produces a Response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Headers never forwarded to backends. Host is carried by the request URL
// and Content-Length is recomputed from the buffered body.
var hopByHopHeaders = map[string]bool{
	"Host":           true,
	"Content-Length": true,
	"Connection":     true,
}

// Client performs single proxy attempts against backend services.
// It is safe for concurrent use; the underlying transport pools connections.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Do performs one attempt against the descriptor's backend. The descriptor
// timeout applies to this attempt only. A completed exchange returns a
// Response regardless of status code; transport failures return a
// TransportError unless the caller's context was cancelled first.
func (c *Client) Do(ctx context.Context, desc registry.Descriptor, preq *Request) (*Response, error) {
	target := desc.BaseURL.ResolveReference(&url.URL{Path: preq.Path, RawQuery: preq.Query})

	attemptCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	var body io.Reader
	if len(preq.Body) > 0 {
		body = bytes.NewReader(preq.Body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, preq.Method, target.String(), body)
	if err != nil {
		return nil, &TransportError{Service: desc.Name, Err: err}
	}

	copyForwardHeaders(req.Header, preq.Header)
	req.Header.Set("X-Forwarded-For", appendForwardedFor(preq.Header.Get("X-Forwarded-For"), preq.ClientIP))
	req.Header.Set("X-Request-ID", preq.RequestID)

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Caller disconnects are not backend failures.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Service: desc.Name, Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Service: desc.Name, Err: err}
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       payload,
	}, nil
}

func copyForwardHeaders(dst, src http.Header) {
	for name, values := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func appendForwardedFor(chain, clientIP string) string {
	if chain == "" {
		return clientIP
	}
	if clientIP == "" {
		return chain
	}
	return strings.Join([]string{chain, clientIP}, ", ")
}
