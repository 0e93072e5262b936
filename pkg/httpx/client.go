// Package httpx is the HTTP collaborator shared by everything a session does.
// It owns the default headers (e.g. the bearer token) and the TLS trust
// setting, issues synchronous requests, and never retries.
package httpx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/sirupsen/logrus"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient bases the underlying HTTP client on h. The Client works on
// a copy: h and its transport are never modified. When the transport is an
// *http.Transport the copy gets a clone of it carrying the TLS setting of the
// Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			hc := *h
			c.httpClient = &hc
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithTLSConfig sets the trust configuration used for https endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// WithLogger sets the logger used for request traces.
func WithLogger(l afs.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues requests on behalf of a single session. It is not safe to
// mutate its headers from several goroutines.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	tlsConfig  *tls.Config
	logger     afs.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// NewClient builds a Client. Without WithTLSConfig certificates are not
// verified.
func NewClient(opts ...Option) *Client {
	c := &Client{
		headers: make(http.Header),
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tlsConfig == nil {
		c.tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.applyTLS()
	return c
}

func (c *Client) applyTLS() {
	switch t := c.httpClient.Transport.(type) {
	case nil:
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = c.tlsConfig
		c.httpClient.Transport = tr
	case *http.Transport:
		tr := t.Clone()
		tr.TLSClientConfig = c.tlsConfig
		c.httpClient.Transport = tr
	}
}

// InsecureSkipVerify reports whether server certificates go unchecked.
func (c *Client) InsecureSkipVerify() bool {
	return c.tlsConfig.InsecureSkipVerify
}

// SetHeader replaces a default header.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// Header returns a copy of the default headers.
func (c *Client) Header() http.Header {
	return cloneHeader(c.headers)
}

// Get performs a GET against rawURL with the supplied query parameters. Only
// transport failures are returned as errors; the caller inspects the status.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, query, nil)
}

// Do performs a request and reads the whole body.
func (c *Client) Do(ctx context.Context, method, rawURL string, query url.Values, body io.Reader) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	full, err := withQuery(rawURL, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, full, body)
	if err != nil {
		return nil, errors.Wrap(err, "httpx: build request")
	}
	req = req.WithContext(ctx)
	req.Header = cloneHeader(c.headers)

	c.logger.WithFields(logrus.Fields{"method": method, "url": redact(full)}).Debug("sending request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "httpx: %s %s", method, redact(full))
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "httpx: read response body")
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        full,
	}, nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode/100 == 2
}

// Err returns an *HTTPError for non-2xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &HTTPError{
		StatusCode: r.StatusCode,
		Body:       r.Body,
		Header:     r.Header,
	}
}

// DecodeJSON unmarshals the body into out.
func (r *Response) DecodeJSON(out interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("httpx: empty response body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.Wrap(err, "httpx: decode response body")
	}
	return nil
}

// JoinURL appends escaped path segments to base, keeping exactly one slash
// between parts. With no segments base is returned with a trailing slash.
func JoinURL(base string, segments ...string) string {
	out := EnsureTrailingSlash(base)
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(s))
	}
	return out + strings.Join(escaped, "/")
}

// EnsureTrailingSlash returns s ending in exactly one "/".
func EnsureTrailingSlash(s string) string {
	return strings.TrimRight(s, "/") + "/"
}

func withQuery(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "httpx: invalid URL %q", rawURL)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, values := range query {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact hides credential query parameters in log output.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("auth_code") == "" {
		return rawURL
	}
	q.Set("auth_code", "xxxxx")
	u.RawQuery = q.Encode()
	return u.String()
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
