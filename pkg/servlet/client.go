package servlet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/metrics"
)

const (
	defaultTimeout           = 30 * time.Second
	responseBodyLimit  int64 = 8 << 20
	errorBodyLogLimit        = 512
	formContentType          = "application/x-www-form-urlencoded"
	jsonContentType          = "application/json"
)

var errBaseURLRequired = errors.New("servlet base url is required")

// CookieJar persists the servlet container's cookies per storefront session.
type CookieJar interface {
	Load(ctx context.Context, sessionID string) ([]*http.Cookie, error)
	Merge(ctx context.Context, sessionID string, cookies []*http.Cookie) error
}

// Client calls the remote servlets on behalf of one storefront session at a time.
type Client struct {
	httpClient *http.Client
	baseURL    string
	jar        CookieJar
	metrics    *metrics.ServletMetrics
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithCookieJar wires per-session upstream cookie persistence.
func WithCookieJar(jar CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithMetrics records latency and outcome of every call.
func WithMetrics(m *metrics.ServletMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger enables debug logs for rejected calls.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds a servlet client rooted at the web application's context path.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// BaseURL returns the servlet context root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// File is one multipart upload part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// Request describes one servlet call.
type Request struct {
	SessionID string
	Endpoint  Endpoint
	Method    string
	Query     url.Values
	Form      url.Values
	JSON      any
	Files     []File
}

func (r Request) action() string {
	if a := r.Form.Get("action"); a != "" {
		return a
	}
	return r.Query.Get("action")
}

// Get issues a GET with query parameters.
func (c *Client) Get(ctx context.Context, sessionID string, endpoint Endpoint, query url.Values, out any) error {
	return c.Do(ctx, Request{SessionID: sessionID, Endpoint: endpoint, Method: http.MethodGet, Query: query}, out)
}

// PostForm issues a form-encoded POST. A non-empty action is sent as the discriminator field.
func (c *Client) PostForm(ctx context.Context, sessionID string, endpoint Endpoint, action string, form url.Values, out any) error {
	body := url.Values{}
	for k, v := range form {
		body[k] = append([]string(nil), v...)
	}
	if action != "" {
		body.Set("action", action)
	}
	return c.Do(ctx, Request{SessionID: sessionID, Endpoint: endpoint, Method: http.MethodPost, Form: body}, out)
}

// PostJSON issues a JSON POST. Query carries the action when the servlet reads it from the URL.
func (c *Client) PostJSON(ctx context.Context, sessionID string, endpoint Endpoint, query url.Values, payload any, out any) error {
	return c.Do(ctx, Request{SessionID: sessionID, Endpoint: endpoint, Method: http.MethodPost, Query: query, JSON: payload}, out)
}

// PostMultipart issues a multipart POST with form fields and file parts.
func (c *Client) PostMultipart(ctx context.Context, sessionID string, endpoint Endpoint, action string, fields url.Values, files []File, out any) error {
	form := url.Values{}
	for k, v := range fields {
		form[k] = append([]string(nil), v...)
	}
	if action != "" {
		form.Set("action", action)
	}
	if files == nil {
		files = []File{}
	}
	return c.Do(ctx, Request{SessionID: sessionID, Endpoint: endpoint, Method: http.MethodPost, Form: form, Files: files}, out)
}

// Do executes req and decodes a 2xx JSON body into out.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "servlet client not configured")
	}
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		c.metrics.Observe(string(req.Endpoint), req.action(), outcome, time.Since(start))
	}()

	httpReq, err := c.build(ctx, req)
	if err != nil {
		outcome = metrics.OutcomeTransport
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgerrors.DependencyMessage)
	}
	if err := c.attachCookies(ctx, req.SessionID, httpReq); err != nil {
		outcome = metrics.OutcomeTransport
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load upstream session")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		outcome = metrics.OutcomeTransport
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgerrors.DependencyMessage)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.storeCookies(ctx, req.SessionID, resp); err != nil {
		outcome = metrics.OutcomeTransport
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save upstream session")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		outcome = metrics.OutcomeTransport
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgerrors.DependencyMessage)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rejected := rejection(resp.StatusCode, body)
		if pkgerrors.IsCode(rejected, pkgerrors.CodeDependency) {
			outcome = metrics.OutcomeTransport
		} else {
			outcome = metrics.OutcomeRejected
		}
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"endpoint": string(req.Endpoint),
				"action":   req.action(),
				"status":   resp.StatusCode,
				"body":     truncate(body, errorBodyLogLimit),
			})
			c.logg.Warn(logCtx, "servlet.rejected")
		}
		return rejected
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		outcome = metrics.OutcomeDecode
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("decode %s response: %w", req.Endpoint, err), pkgerrors.DependencyMessage)
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.baseURL + "/" + strings.TrimLeft(string(req.Endpoint), "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Files != nil:
		buf, ct, err := encodeMultipart(req.Form, req.Files)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", req.Endpoint, err)
		}
		body, contentType = bytes.NewReader(payload), jsonContentType
	case req.Form != nil:
		body, contentType = strings.NewReader(req.Form.Encode()), formContentType
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Endpoint, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", jsonContentType)
	return httpReq, nil
}

func encodeMultipart(fields url.Values, files []File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) attachCookies(ctx context.Context, sessionID string, req *http.Request) error {
	if c.jar == nil || sessionID == "" {
		return nil
	}
	cookies, err := c.jar.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return nil
}

func (c *Client) storeCookies(ctx context.Context, sessionID string, resp *http.Response) error {
	if c.jar == nil || sessionID == "" {
		return nil
	}
	fresh := resp.Cookies()
	if len(fresh) == 0 {
		return nil
	}
	return c.jar.Merge(ctx, sessionID, fresh)
}

// rejection maps a non-2xx servlet reply to the gateway error taxonomy.
// A JSON body with a message is a business failure surfaced verbatim.
func rejection(status int, body []byte) error {
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = strings.TrimSpace(payload.Error)
		}
	}
	if msg == "" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("servlet status %d: %s", status, truncate(body, errorBodyLogLimit)), pkgerrors.DependencyMessage)
	}
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
	case http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, msg)
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	case http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, msg)
	}
}

func truncate(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
