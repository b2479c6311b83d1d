package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, falling back to def when it is absent.
// Present values must lie in [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a whole number", key)).
			WithDetails(map[string]string{key: "must be a whole number"})
	}
	if n < min || n > max {
		msg := fmt.Sprintf("must be between %d and %d", min, max)
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" "+msg).
			WithDetails(map[string]string{key: msg})
	}
	return n, nil
}
