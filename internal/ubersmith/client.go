// Package ubersmith is a minimal client for the Ubersmith 2.0 API, covering the
// self-description methods used to crawl the API surface.
package ubersmith

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/bnassif/ubersmith-api/internal/jsonnode"
)

// Remote methods used by the extractor.
const (
	MethodSystemInfo = "uber.system_info"
	MethodList       = "uber.method_list"
	MethodGet        = "uber.method_get"
)

const (
	apiPath        = "/api/2.0/"
	DefaultTimeout = 60 * time.Second
	maxBodyBytes   = 64 << 20
)

// Config describes how to reach an Ubersmith instance.
type Config struct {
	Host     string
	Port     int // 0 selects 443, or 80 when Secure is false
	Username string
	Password string
	// VerifyTLS disables certificate verification when false.
	VerifyTLS bool
	Secure    bool
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	UserAgent string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// DefaultPort returns the port the original tooling picked for the scheme.
func DefaultPort(secure bool) int {
	if secure {
		return 443
	}
	return 80
}

// BaseURL returns the API endpoint for cfg.
func (cfg Config) BaseURL() string {
	scheme := "https"
	if !cfg.Secure {
		scheme = "http"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort(cfg.Secure)
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(cfg.Host, strconv.Itoa(port)), Path: apiPath}
	return u.String()
}

// Client performs authenticated calls against one Ubersmith instance. Calls
// are sequential by design of its callers; the client holds no per-call state.
type Client struct {
	cfg     Config
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("ubersmith: host is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ubersmith: invalid port %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ubergen/" + versioninfo.Short()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if !cfg.VerifyTLS {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
		}
		hc = &http.Client{Transport: tr}
	}
	c := &Client{cfg: cfg, base: cfg.BaseURL(), http: hc}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// Host returns the configured host name.
func (c *Client) Host() string { return c.cfg.Host }

type envelope struct {
	Status       bool            `json:"status"`
	ErrorCode    any             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Data         json.RawMessage `json:"data"`
}

// Call invokes method with params and decodes the envelope's data into out.
// out may be a *json.RawMessage to keep the payload undecoded, or nil.
func (c *Client) Call(ctx context.Context, method string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	for k, vs := range params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("method", method)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.base, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("ubersmith %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectivityError{Op: method, Host: c.cfg.Host, Cause: redact(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ConnectivityError{Op: method, Host: c.cfg.Host, Auth: true, Cause: errors.New(resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return &HTTPError{Method: method, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectivityError{Op: method, Host: c.cfg.Host, Cause: fmt.Errorf("read response: %w", redact(err))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("ubersmith %s: decode response: %w", method, err)
	}
	if !env.Status {
		return &APIError{Method: method, Code: errorCode(env.ErrorCode), Message: env.ErrorMessage}
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Data...)
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("ubersmith %s: decode data: %w", method, err)
	}
	return nil
}

// SystemInfo is the subset of uber.system_info the extractor needs.
type SystemInfo struct {
	Version string
	Fields  map[string]any
}

// SystemInfo returns the remote version information.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var fields map[string]any
	if err := c.Call(ctx, MethodSystemInfo, nil, &fields); err != nil {
		return nil, err
	}
	info := &SystemInfo{Fields: fields}
	switch v := fields["version"].(type) {
	case nil:
	case string:
		info.Version = v
	default:
		info.Version = fmt.Sprint(v)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("ubersmith %s: response has no version", MethodSystemInfo)
	}
	return info, nil
}

// MethodList returns every dotted method identifier in the order the remote
// reports them. Both object (name to description) and array payloads are
// accepted.
func (c *Client) MethodList(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, MethodList, nil, &raw); err != nil {
		return nil, err
	}
	names, err := orderedNames(raw)
	if err != nil {
		return nil, fmt.Errorf("ubersmith %s: %w", MethodList, err)
	}
	return names, nil
}

// MethodGet returns the raw detail payload for one dotted method name.
func (c *Client) MethodGet(ctx context.Context, name string) (json.RawMessage, error) {
	var raw json.RawMessage
	params := url.Values{"method_name": {name}}
	if err := c.Call(ctx, MethodGet, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// orderedNames reads object keys or array items without losing their order.
func orderedNames(raw []byte) ([]string, error) {
	n, err := jsonnode.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode method list: %w", err)
	}
	var names []string
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			names = append(names, n.Content[i].Value)
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("method list entry at line %d is not a name", item.Line)
			}
			names = append(names, item.Value)
		}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return nil, errors.New("method list is not a collection")
	default:
		return nil, errors.New("method list is not a collection")
	}
	return names, nil
}

func errorCode(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

// redact strips the request URL from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
