package validators

import (
	"encoding/json"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
)

// maxBodyBytes bounds JSON request bodies. Multipart uploads are limited separately.
const maxBodyBytes = 1 << 20

var validate = validation.New()

// DecodeJSONBody decodes the request body into dest and runs its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if err := DecodeJSON(r, dest); err != nil {
		return err
	}
	if err := validate.Struct(dest); err != nil {
		return validation.AsError(err)
	}
	return nil
}

// DecodeJSON only decodes. Use it when the service normalizes and validates the input itself.
func DecodeJSON(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

// DecodeOptionalJSONBody is DecodeJSONBody for endpoints whose body may be empty.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		if err := validate.Struct(dest); err != nil {
			return validation.AsError(err)
		}
		return nil
	}
	return DecodeJSONBody(r, dest)
}
