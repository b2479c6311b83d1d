package session

import (
	"context"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// Redirect targets handed to the UI when a view is refused.
const (
	RedirectLogin      = "/login"
	RedirectAdminLogin = "/admin/login"
	RedirectUnblock    = "/unblock-request"
	RedirectHome       = "/"
	RedirectAdminHome  = "/admin"
)

// Access is the audience a view is built for.
type Access string

const (
	AccessPublic     Access = "public"
	AccessPublicOnly Access = "public_only"
	AccessProtected  Access = "protected"
	AccessAdmin      Access = "admin"
)

// Snapshot is the restored identity of a storefront session.
type Snapshot struct {
	User    *types.User `json:"user"`
	IsAdmin bool        `json:"isAdmin"`
	Loading bool        `json:"loading"`
}

func (s Snapshot) Anonymous() bool {
	return s.User == nil
}

func (s Snapshot) Blocked() bool {
	return s.User != nil && s.User.IsBlocked
}

// Decision is the outcome of gating a view.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

// Gate decides whether the snapshot may reach a view with the given access level.
func Gate(s Snapshot, access Access) Decision {
	switch access {
	case AccessProtected:
		if s.Anonymous() {
			return Decision{Redirect: RedirectLogin}
		}
		if s.Blocked() {
			return Decision{Redirect: RedirectUnblock}
		}
	case AccessAdmin:
		if s.Anonymous() || !s.IsAdmin {
			return Decision{Redirect: RedirectAdminLogin}
		}
	case AccessPublicOnly:
		if !s.Anonymous() && !s.Blocked() {
			if s.IsAdmin {
				return Decision{Redirect: RedirectAdminHome}
			}
			return Decision{Redirect: RedirectHome}
		}
	}
	return Decision{Allowed: true}
}

// Refusal converts a refused decision into the error returned to API callers.
func Refusal(d Decision) error {
	if d.Allowed {
		return nil
	}
	details := map[string]any{"redirect": d.Redirect}
	switch d.Redirect {
	case RedirectUnblock:
		return pkgerrors.New(pkgerrors.CodeBlocked, "your account is blocked").WithDetails(details)
	case RedirectLogin:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "please log in to continue").WithDetails(details)
	case RedirectAdminLogin:
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin login required").WithDetails(details)
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "already logged in").WithDetails(details)
	}
}

// Load restores the snapshot held in a session's state.
func Load(ctx context.Context, sess *statestore.Session) (Snapshot, error) {
	user, ok, err := statestore.Load[types.User](ctx, sess, statestore.KeyUser)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore session")
	}
	if !ok {
		return Snapshot{}, nil
	}
	isAdmin, _, err := statestore.Load[bool](ctx, sess, statestore.KeyIsAdmin)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore session")
	}
	return Snapshot{User: &user, IsAdmin: isAdmin}, nil
}

// RequireUser returns the signed-in, non-blocked shopper or the refusal for a protected view.
func RequireUser(ctx context.Context, sess *statestore.Session) (*types.User, error) {
	snap, err := Load(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := Refusal(Gate(snap, AccessProtected)); err != nil {
		return nil, err
	}
	return snap.User, nil
}

// RequireAdmin returns the signed-in admin or the refusal for an admin view.
func RequireAdmin(ctx context.Context, sess *statestore.Session) (*types.User, error) {
	snap, err := Load(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := Refusal(Gate(snap, AccessAdmin)); err != nil {
		return nil, err
	}
	return snap.User, nil
}
