package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	"github.com/angelmondragon/storefront-gateway/api/validators"
	"github.com/angelmondragon/storefront-gateway/internal/admin"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/pagination"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
)

// AdminTables lists the table declarations the console renders.
func AdminTables(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		responses.WriteSuccess(w, svc.Tables())
	}
}

func AdminTableList(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource, err := pathParam(r, "resource")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paging := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
		page, err := svc.List(r.Context(), sid, resource, paging)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminTableCreate(svc admin.Service, maxUpload int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource, err := pathParam(r, "resource")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in, err := readAdminInput(r, maxUpload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Create(r.Context(), sid, resource, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

func AdminTableUpdate(svc admin.Service, maxUpload int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource, err := pathParam(r, "resource")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in, err := readAdminInput(r, maxUpload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Update(r.Context(), sid, resource, id, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminTableDelete(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource, err := pathParam(r, "resource")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Delete(r.Context(), sid, resource, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminTableAction(svc admin.Service, maxUpload int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("admin"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resource, err := pathParam(r, "resource")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := pathParam(r, "action")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in, err := readAdminInput(r, maxUpload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.Act(r.Context(), sid, resource, id, action, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// readAdminInput accepts a flat JSON object or a multipart form. Files are only read from multipart.
// An empty body is an empty form.
func readAdminInput(r *http.Request, maxUpload int64) (admin.Input, error) {
	in := admin.Input{Fields: map[string]string{}}
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return in, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipartInput(r, maxUpload)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				in.Fields[key] = values[0]
			}
		}
		return in, nil
	default:
		return readJSONInput(r, in)
	}
}

func readJSONInput(r *http.Request, in admin.Input) (admin.Input, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			in.Fields[key] = v
		case json.Number, bool:
			in.Fields[key] = fmt.Sprint(v)
		default:
			return in, pkgerrors.New(pkgerrors.CodeValidation, "form values must be strings, numbers or booleans").WithDetails(map[string]any{"field": key})
		}
	}
	return in, nil
}

func readMultipartInput(r *http.Request, maxUpload int64) (admin.Input, error) {
	in := admin.Input{Fields: map[string]string{}}
	if maxUpload <= 0 {
		maxUpload = admin.DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxUpload+(1<<20))
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"image": "image is too large"})
		}
		return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	defer r.MultipartForm.RemoveAll()

	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			in.Fields[key] = values[0]
		}
	}
	for field, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
			}
			in.Files = append(in.Files, servlet.File{
				Field:       field,
				Filename:    strings.TrimSpace(header.Filename),
				ContentType: header.Header.Get("Content-Type"),
				Content:     content,
			})
		}
	}
	return in, nil
}
