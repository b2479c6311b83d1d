package images

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	imageServletPath = "ImageServlet"
	defaultMIME      = "image/jpeg"
)

// prefix sniffing used when the decoded bytes do not identify themselves.
var base64Prefixes = []struct {
	prefix string
	mime   string
}{
	{prefix: "/9j/", mime: "image/jpeg"},
	{prefix: "iVBOR", mime: "image/png"},
	{prefix: "R0lG", mime: "image/gif"},
	{prefix: "UklG", mime: "image/webp"},
}

// Resolver turns references into display sources relative to the servlet container.
type Resolver struct {
	baseURL     string
	placeholder string
}

func NewResolver(servletBaseURL, placeholder string) Resolver {
	return Resolver{
		baseURL:     strings.TrimRight(strings.TrimSpace(servletBaseURL), "/"),
		placeholder: placeholder,
	}
}

// URL returns a display source for ref, falling back to the product's primary image and then the placeholder.
func (r Resolver) URL(ref Ref, productID string) string {
	switch ref.Kind {
	case KindURL, KindData:
		return ref.Value
	case KindServlet:
		if strings.HasPrefix(ref.Value, "http://") || strings.HasPrefix(ref.Value, "https://") {
			return ref.Value
		}
		return r.baseURL + "/" + strings.TrimLeft(ref.Value, "/")
	case KindID:
		return r.servletURL("imgId", ref.Value)
	case KindPath:
		return r.servletURL("path", ref.Value)
	case KindBase64:
		return DataURI(ref.Value)
	}
	if strings.TrimSpace(productID) != "" {
		return r.servletURL("productId", productID)
	}
	return r.placeholder
}

// URLs resolves a gallery, dropping references that resolve to nothing.
func (r Resolver) URLs(refs []Ref, productID string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.IsZero() {
			continue
		}
		if u := r.URL(ref, productID); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (r Resolver) servletURL(param, value string) string {
	q := url.Values{}
	q.Set(param, value)
	return r.baseURL + "/" + imageServletPath + "?" + q.Encode()
}

// DataURI wraps an inline base64 payload in a data URI with a sniffed MIME type.
func DataURI(payload string) string {
	return "data:" + DetectMIME(payload) + ";base64," + payload
}

// DetectMIME inspects the decoded bytes first and falls back to well-known base64 prefixes.
func DetectMIME(payload string) string {
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil && len(decoded) > 0 {
		detected := mimetype.Detect(decoded)
		if strings.HasPrefix(detected.String(), "image/") {
			return detected.String()
		}
	}
	for _, p := range base64Prefixes {
		if strings.HasPrefix(payload, p.prefix) {
			return p.mime
		}
	}
	return defaultMIME
}
