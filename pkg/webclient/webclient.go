// HTTP client capability for detectors.
//
// Detector payloads are often deliberately malformed: the path
// traversal probes carry sequences like "%%32%65" that are not
// valid percent-encoding and must reach the wire byte-for-byte.
// url.Parse rejects or re-normalizes such paths, so requests are
// built by splitting scheme and host by hand and carrying the
// remainder in URL.Opaque, which net/http writes out verbatim.
package webclient

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultUserAgent = "trawl/1.0"

type Options struct {
	// Per-request deadline enforced by the transport
	Timeout time.Duration
	// Upstream proxy, if any
	Proxy string
	// Skip TLS certificate verification. Scan targets rarely
	// present valid certificates
	Insecure bool

	UserAgent string
}

type Client struct {
	hc        *http.Client
	userAgent string
}

// Response is the subset of an HTTP exchange detectors evaluate:
// status, headers, and the body as bytes.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) BodyContains(s string) bool {
	return strings.Contains(string(r.Body), s)
}

func New(opts Options) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
	}

	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	hc := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		// Detectors evaluate the first response; redirects would
		// mask the status codes they match on
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{hc: hc, userAgent: ua}
}

// Splits a raw URL into scheme, host and the untouched remainder.
// Only the authority is parsed; the path is never decoded.
func splitRawURL(raw string) (scheme, host, opaque string, err error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", "", "", errors.Errorf("url has no scheme: %q", raw)
	}

	host, path, ok := strings.Cut(rest, "/")
	if host == "" {
		return "", "", "", errors.Errorf("url has no host: %q", raw)
	}
	opaque = "/"
	if ok {
		opaque += path
	}
	return scheme, host, opaque, nil
}

// Get issues a single unauthenticated GET for the raw URL. The
// path portion is sent literally, without normalization.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	scheme, host, opaque, err := splitRawURL(rawURL)
	if err != nil {
		return nil, err
	}

	req := &http.Request{
		Method: http.MethodGet,
		URL: &url.URL{
			Scheme: scheme,
			Host:   host,
			Opaque: opaque,
		},
		Header: http.Header{"User-Agent": []string{c.userAgent}},
		Host:   host,
	}
	req = req.WithContext(ctx)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
