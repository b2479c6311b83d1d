package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-gateway/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
)

func sessionID(r *http.Request) (string, error) {
	sid := middleware.SessionIDFromContext(r.Context())
	if sid == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	return sid, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	return value, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
