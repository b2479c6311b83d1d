package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	"github.com/angelmondragon/storefront-gateway/api/validators"
	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	session.Snapshot
	Decision *session.Decision `json:"decision,omitempty"`
}

// SessionRestore returns the session's identity. With ?access=<level> it also answers whether a
// view of that audience may be shown and where to redirect otherwise.
func SessionRestore(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.Restore(r.Context(), sid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := sessionResponse{Snapshot: snap}
		if raw := strings.TrimSpace(r.URL.Query().Get("access")); raw != "" {
			access, err := parseAccess(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			decision := session.Gate(snap, access)
			resp.Decision = &decision
		}
		responses.WriteSuccess(w, resp)
	}
}

func parseAccess(raw string) (session.Access, error) {
	switch access := session.Access(strings.ToLower(raw)); access {
	case session.AccessPublic, session.AccessPublicOnly, session.AccessProtected, session.AccessAdmin:
		return access, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "access must be one of public, public_only, protected, admin")
	}
}

func AuthLogin(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return login(svc, logg, false)
}

func AdminAuthLogin(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return login(svc, logg, true)
}

func login(svc session.Service, logg *logger.Logger, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var snap session.Snapshot
		if admin {
			snap, err = svc.AdminLogin(r.Context(), sid, req.Email, req.Password)
		} else {
			snap, err = svc.Login(r.Context(), sid, req.Email, req.Password)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// AuthLogout always succeeds locally; upstream logout failures are only logged by the service.
func AuthLogout(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Logout(r.Context(), sid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out", "next": session.RedirectLogin})
	}
}

func AuthRegister(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in session.RegistrationInput
		if err := validators.DecodeJSON(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Register(r.Context(), sid, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type fieldCheckRequest struct {
	Field  string          `json:"field"`
	Values json.RawMessage `json:"values"`
}

type fieldCheckResponse struct {
	Field   string `json:"field"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// AuthRegisterValidate checks one registration field against the rest of the form as typed so far.
func AuthRegisterValidate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fieldCheckRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in session.RegistrationInput
		if len(req.Values) > 0 {
			if err := json.Unmarshal(req.Values, &in); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form values"))
				return
			}
		}
		msg, err := session.ValidateRegistrationField(strings.TrimSpace(req.Field), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, fieldCheckResponse{Field: req.Field, Valid: msg == "", Message: msg})
	}
}

type unblockRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

func AuthUnblockRequest(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req unblockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RequestUnblock(r.Context(), sid, validators.SanitizeString(req.Message, 1000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}

func ProfileGet(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Profile(r.Context(), sid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func ProfileUpdate(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in session.ProfileInput
		if err := validators.DecodeJSON(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.UpdateProfile(r.Context(), sid, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func ProfilePassword(svc session.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("session"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in session.PasswordChange
		if err := validators.DecodeJSON(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ChangePassword(r.Context(), sid, in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "password_changed"})
	}
}
