package images

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies where the bytes of a product image live.
type Kind string

const (
	KindNone    Kind = "none"
	KindURL     Kind = "url"
	KindServlet Kind = "servlet"
	KindID      Kind = "id"
	KindPath    Kind = "path"
	KindBase64  Kind = "base64"
	KindData    Kind = "data"
)

const minBase64Len = 50

var (
	base64Charset = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
	digitsOnly    = regexp.MustCompile(`^\d+$`)
)

// Ref is an image reference classified once at the servlet boundary.
type Ref struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Parse classifies a raw image value emitted by the servlets.
func Parse(raw string) Ref {
	value := strings.TrimSpace(raw)
	lower := strings.ToLower(value)
	switch {
	case value == "":
		return Ref{Kind: KindNone}
	case strings.HasPrefix(lower, "data:"):
		return Ref{Kind: KindData, Value: value}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return Ref{Kind: KindURL, Value: value}
	case strings.Contains(value, "ImageServlet"):
		return Ref{Kind: KindServlet, Value: value}
	case digitsOnly.MatchString(value):
		return Ref{Kind: KindID, Value: value}
	case LooksLikeBase64(value):
		return Ref{Kind: KindBase64, Value: value}
	default:
		return Ref{Kind: KindPath, Value: value}
	}
}

// LooksLikeBase64 applies the storefront heuristic for inline image payloads.
func LooksLikeBase64(value string) bool {
	return len(value) >= minBase64Len && base64Charset.MatchString(value)
}

// IsZero reports whether the reference points nowhere.
func (r Ref) IsZero() bool {
	return r.Kind == "" || r.Kind == KindNone
}

// UnmarshalJSON accepts either a stored Ref object or a raw servlet string.
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*r = Ref{Kind: KindNone}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Kind  Kind   `json:"kind"`
			Value string `json:"value"`
			ImgID any    `json:"imgId"`
			URL   string `json:"url"`
			Path  string `json:"path"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		switch {
		case obj.Kind != "":
			*r = Ref{Kind: obj.Kind, Value: obj.Value}
		case obj.URL != "":
			*r = Parse(obj.URL)
		case obj.ImgID != nil:
			*r = Ref{Kind: KindID, Value: strings.Trim(jsonScalar(obj.ImgID), `"`)}
		default:
			*r = Parse(obj.Path)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// numeric image ids arrive unquoted
		*r = Parse(trimmed)
		return nil
	}
	*r = Parse(s)
	return nil
}

func jsonScalar(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
