package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the page size when a limit is not provided.
	DefaultLimit = 50
	// MaxLimit caps how many rows one page can hold.
	MaxLimit = 200
)

const cursorPrefix = "o:"

// Params holds paging inputs from controllers.
type Params struct {
	Limit  int
	Cursor string
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor makes an opaque cursor for the row offset where the next page starts.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// ParseCursor returns the offset a cursor points at. An empty cursor is offset zero.
func ParseCursor(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor offset")
	}
	return offset, nil
}

// Window returns the [start, end) bounds of the requested page over total rows and the
// cursor for the page after it, empty on the last page.
func Window(total int, p Params) (int, int, string, error) {
	start, err := ParseCursor(p.Cursor)
	if err != nil {
		return 0, 0, "", err
	}
	if start > total {
		start = total
	}
	end := start + NormalizeLimit(p.Limit)
	if end >= total {
		return start, total, "", nil
	}
	return start, end, EncodeCursor(end), nil
}
