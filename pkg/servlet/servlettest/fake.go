// Package servlettest runs an in-process stand-in for the remote servlets.
package servlettest

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
)

// Call is one request observed by the fake.
type Call struct {
	Endpoint servlet.Endpoint
	Method   string
	Action   string
	Query    url.Values
	Form     url.Values
	Body     []byte
	Cookies  []*http.Cookie
}

// Fake routes servlet paths to test handlers and records every call.
type Fake struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[servlet.Endpoint]http.HandlerFunc
	calls    []Call
}

func New(t testing.TB) *Fake {
	t.Helper()
	f := &Fake{handlers: map[servlet.Endpoint]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Handle installs h for the endpoint, replacing any previous handler.
func (f *Fake) Handle(endpoint servlet.Endpoint, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[endpoint] = h
}

// Client returns a servlet client pointed at the fake.
func (f *Fake) Client(t testing.TB, opts ...servlet.Option) *servlet.Client {
	t.Helper()
	client, err := servlet.NewClient(f.Server.URL, opts...)
	if err != nil {
		t.Fatalf("servlet client: %v", err)
	}
	return client
}

// Calls returns the recorded calls for endpoint, or all calls when endpoint is empty.
func (f *Fake) Calls(endpoint servlet.Endpoint) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, 0, len(f.calls))
	for _, c := range f.calls {
		if endpoint == "" || c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

// Actions lists the action discriminators sent to endpoint in order.
func (f *Fake) Actions(endpoint servlet.Endpoint) []string {
	calls := f.Calls(endpoint)
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Action)
	}
	return out
}

func (f *Fake) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := servlet.Endpoint(strings.TrimPrefix(r.URL.Path, "/"))
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	call := Call{
		Endpoint: endpoint,
		Method:   r.Method,
		Query:    r.URL.Query(),
		Form:     url.Values{},
		Body:     body,
		Cookies:  r.Cookies(),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(body)); err == nil {
			call.Form = form
		}
	case "multipart/form-data":
		clone := r.Clone(r.Context())
		clone.Body = io.NopCloser(bytes.NewReader(body))
		if err := clone.ParseMultipartForm(32 << 20); err == nil && clone.MultipartForm != nil {
			call.Form = url.Values(clone.MultipartForm.Value)
		}
	}
	call.Action = call.Form.Get("action")
	if call.Action == "" {
		call.Action = call.Query.Get("action")
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	h := f.handlers[endpoint]
	f.mu.Unlock()

	if h == nil {
		JSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "no such servlet"})
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Fail answers like a broken proxy in front of the servlet: a 502 with no JSON body.
// The client maps it to the same dependency error as a dropped connection, and the
// exchange completes so net/http has nothing to replay.
func Fail(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
}

// Param reads a form or query parameter from a request already routed by the fake.
func Param(r *http.Request, key string) string {
	if err := r.ParseForm(); err == nil {
		if v := r.Form.Get(key); v != "" {
			return v
		}
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			return r.FormValue(key)
		}
	}
	return r.URL.Query().Get(key)
}
