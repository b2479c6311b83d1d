package admin

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultMaxUploadBytes caps product image uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 5 << 20

var validate = validation.New()

// Input is a submitted admin form.
type Input struct {
	Fields map[string]string
	Files  []servlet.File
}

// encode checks in against specs and renders the servlet form. Fields not declared in specs are dropped.
func encode(specs []FieldSpec, in Input, maxUpload int64) (url.Values, []servlet.File, error) {
	form := url.Values{}
	var files []servlet.File
	problems := map[string]string{}

	for _, spec := range specs {
		required, rules := splitRules(spec.Rules)
		if spec.Kind == KindFile {
			file, ok := findFile(in.Files, spec.Name)
			if !ok {
				if required {
					problems[spec.Name] = "is required"
				}
				continue
			}
			contentType, msg := checkImage(file, maxUpload)
			if msg != "" {
				problems[spec.Name] = msg
				continue
			}
			file.Field = spec.Name
			file.ContentType = contentType
			files = append(files, file)
			continue
		}

		raw := strings.TrimSpace(in.Fields[spec.Name])
		if raw == "" {
			if required {
				problems[spec.Name] = "is required"
			}
			continue
		}
		value, rendered, msg := parseValue(spec.Kind, raw)
		if msg != "" {
			problems[spec.Name] = msg
			continue
		}
		if rules != "" {
			if err := validate.Var(value, rules); err != nil {
				problems[spec.Name] = ruleMessage(err)
				continue
			}
		}
		form.Set(spec.Name, rendered)
	}

	if len(problems) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(problems)
	}
	return form, files, nil
}

func splitRules(rules string) (bool, string) {
	required := false
	kept := make([]string, 0, 4)
	for _, r := range strings.Split(rules, ",") {
		r = strings.TrimSpace(r)
		switch r {
		case "":
		case "required":
			required = true
		default:
			kept = append(kept, r)
		}
	}
	return required, strings.Join(kept, ",")
}

func parseValue(kind FieldKind, raw string) (any, string, string) {
	switch kind {
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, "", "must be a whole number"
		}
		return n, strconv.Itoa(n), ""
	case KindDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, "", "must be a number"
		}
		return d.InexactFloat64(), d.String(), ""
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, "", "must be true or false"
		}
		return b, strconv.FormatBool(b), ""
	default:
		return raw, raw, ""
	}
}

func ruleMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return validation.Message(errs[0])
	}
	return "is invalid"
}

func findFile(files []servlet.File, field string) (servlet.File, bool) {
	for _, f := range files {
		if f.Field == field && len(f.Content) > 0 {
			return f, true
		}
	}
	return servlet.File{}, false
}

// checkImage sniffs the upload instead of trusting the browser's content type.
func checkImage(f servlet.File, maxUpload int64) (string, string) {
	if maxUpload > 0 && int64(len(f.Content)) > maxUpload {
		return "", "image is too large"
	}
	detected := mimetype.Detect(f.Content)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", "must be an image"
	}
	return detected.String(), ""
}
