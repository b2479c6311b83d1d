package session

import (
	"context"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
)

// ServiceParams groups dependencies for the session service.
type ServiceParams struct {
	Servlet *servlet.Client
	Store   *statestore.Store
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service owns sign-in state for storefront sessions.
type Service interface {
	Login(ctx context.Context, sessionID, email, password string) (Snapshot, error)
	AdminLogin(ctx context.Context, sessionID, email, password string) (Snapshot, error)
	Register(ctx context.Context, sessionID string, in RegistrationInput) (RegisterResult, error)
	Logout(ctx context.Context, sessionID string) error
	Restore(ctx context.Context, sessionID string) (Snapshot, error)
	RequestUnblock(ctx context.Context, sessionID, message string) (types.StatusResponse, error)
	Profile(ctx context.Context, sessionID string) (types.User, error)
	UpdateProfile(ctx context.Context, sessionID string, in ProfileInput) (Snapshot, error)
	ChangePassword(ctx context.Context, sessionID string, in PasswordChange) error
}

// RegisterResult echoes the register servlet's verdict.
type RegisterResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type activeSession struct {
	Email     string    `json:"email"`
	Admin     bool      `json:"admin"`
	StartedAt time.Time `json:"startedAt"`
}

type service struct {
	servlet *servlet.Client
	store   *statestore.Store
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a session service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Servlet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servlet client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		servlet: params.Servlet,
		store:   params.Store,
		logg:    logg,
		now:     now,
	}, nil
}

// Login signs a shopper in. A blocked account is remembered so the UI can route to the unblock request.
func (s *service) Login(ctx context.Context, sessionID, email, password string) (Snapshot, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	var resp types.LoginResponse
	form := url.Values{"email": {email}, "password": {password}}
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointLogin, "", form, &resp); err != nil {
		return Snapshot{}, err
	}

	sess := s.store.Session(sessionID)
	switch resp.Status {
	case types.StatusSuccess:
		user := types.User{Email: email}
		if resp.User != nil {
			user = *resp.User
		}
		if err := s.remember(ctx, sess, user, false); err != nil {
			return Snapshot{}, err
		}
		s.logg.Info(s.logg.WithUserID(ctx, user.UserID), "session.login")
		return Snapshot{User: &user}, nil

	case types.StatusBlocked:
		user := types.User{Email: email}
		if resp.User != nil {
			user = *resp.User
		}
		user.IsBlocked = true
		if err := statestore.Save(ctx, sess, statestore.KeyUser, user); err != nil {
			return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
		}
		if err := statestore.Save(ctx, sess, statestore.KeyIsAdmin, false); err != nil {
			return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
		}
		msg := resp.Message
		if msg == "" {
			msg = "your account is blocked"
		}
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeBlocked, msg).WithDetails(map[string]any{"redirect": RedirectUnblock})

	default:
		return Snapshot{}, rejected(resp.Message, "invalid email or password", pkgerrors.CodeUnauthorized)
	}
}

func (s *service) AdminLogin(ctx context.Context, sessionID, email, password string) (Snapshot, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	var resp types.LoginResponse
	form := url.Values{"email": {email}, "password": {password}}
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointAdminLogin, "", form, &resp); err != nil {
		return Snapshot{}, err
	}
	if resp.Status != types.StatusSuccess {
		return Snapshot{}, rejected(resp.Message, "invalid admin credentials", pkgerrors.CodeUnauthorized)
	}

	user := types.User{Email: email}
	if resp.User != nil {
		user = *resp.User
	}
	user.Role = types.RoleAdmin
	user.IsBlocked = false
	if err := s.remember(ctx, s.store.Session(sessionID), user, true); err != nil {
		return Snapshot{}, err
	}
	s.logg.Info(s.logg.WithActorRole(s.logg.WithUserID(ctx, user.UserID), types.RoleAdmin), "session.admin_login")
	return Snapshot{User: &user, IsAdmin: true}, nil
}

func (s *service) remember(ctx context.Context, sess *statestore.Session, user types.User, admin bool) error {
	if err := statestore.Save(ctx, sess, statestore.KeyUser, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	if err := statestore.Save(ctx, sess, statestore.KeyIsAdmin, admin); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	marker := activeSession{Email: user.Email, Admin: admin, StartedAt: s.now().UTC()}
	if err := statestore.Save(ctx, sess, statestore.KeyActiveSession, marker); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	return nil
}

// Register validates the form locally, then forwards the flat field set.
func (s *service) Register(ctx context.Context, sessionID string, in RegistrationInput) (RegisterResult, error) {
	if err := ValidateRegistration(in); err != nil {
		return RegisterResult{}, err
	}
	in = in.normalized()

	form := url.Values{
		"fname":        {in.FullName},
		"email":        {in.Email},
		"password":     {in.Password},
		"phone":        {in.Phone},
		"full_address": {in.Address},
		"pincode":      {in.Pincode},
	}
	var resp types.StatusResponse
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointRegister, "", form, &resp); err != nil {
		return RegisterResult{}, err
	}
	switch resp.Status {
	case types.StatusSuccess:
		return RegisterResult{Status: resp.Status, Message: resp.Message}, nil
	case types.StatusExists:
		return RegisterResult{}, rejected(resp.Message, "an account with this email already exists", pkgerrors.CodeConflict)
	default:
		return RegisterResult{}, rejected(resp.Message, "registration failed", pkgerrors.CodeConflict)
	}
}

// Logout notifies the servlets best-effort and always clears local state.
func (s *service) Logout(ctx context.Context, sessionID string) error {
	sess := s.store.Session(sessionID)
	snap, err := Load(ctx, sess)
	if err != nil {
		s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "session.logout_restore_failed")
	}

	var notifyErr error
	if snap.IsAdmin {
		notifyErr = s.servlet.PostForm(ctx, sessionID, servlet.EndpointAdmin, "logout", nil, nil)
	} else {
		notifyErr = s.servlet.PostForm(ctx, sessionID, servlet.EndpointLogout, "", nil, nil)
	}
	if notifyErr != nil {
		logCtx := s.logg.WithField(s.logg.WithSessionID(ctx, sessionID), "error", notifyErr.Error())
		s.logg.Warn(logCtx, "session.logout_notify_failed")
	}

	if err := sess.Clear(ctx, statestore.SessionKeys...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear session")
	}
	return nil
}

// Restore returns the stored identity; a session with nothing stored is anonymous.
func (s *service) Restore(ctx context.Context, sessionID string) (Snapshot, error) {
	return Load(ctx, s.store.Session(sessionID))
}

// RequestUnblock files a reactivation request for the stored (blocked) account.
func (s *service) RequestUnblock(ctx context.Context, sessionID, message string) (types.StatusResponse, error) {
	snap, err := Load(ctx, s.store.Session(sessionID))
	if err != nil {
		return types.StatusResponse{}, err
	}
	if snap.Anonymous() {
		return types.StatusResponse{}, Refusal(Decision{Redirect: RedirectLogin})
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return types.StatusResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	form := url.Values{
		"email":   {snap.User.Email},
		"userId":  {snap.User.UserID},
		"message": {message},
	}
	var resp types.StatusResponse
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointReactivation, "", form, &resp); err != nil {
		return types.StatusResponse{}, err
	}
	if !resp.OK() {
		return types.StatusResponse{}, rejected(resp.Message, "could not submit the request", pkgerrors.CodeConflict)
	}
	return resp, nil
}

// Profile fetches the shopper's profile and refreshes the stored snapshot.
func (s *service) Profile(ctx context.Context, sessionID string) (types.User, error) {
	sess := s.store.Session(sessionID)
	current, err := RequireUser(ctx, sess)
	if err != nil {
		return types.User{}, err
	}

	var fetched types.User
	if err := s.servlet.Get(ctx, sessionID, servlet.EndpointProfile, nil, &fetched); err != nil {
		return types.User{}, err
	}
	merged := mergeUser(*current, fetched)
	if err := statestore.Save(ctx, sess, statestore.KeyUser, merged); err != nil {
		return types.User{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	return merged, nil
}

func (s *service) UpdateProfile(ctx context.Context, sessionID string, in ProfileInput) (Snapshot, error) {
	sess := s.store.Session(sessionID)
	current, err := RequireUser(ctx, sess)
	if err != nil {
		return Snapshot{}, err
	}
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Pincode = strings.TrimSpace(in.Pincode)
	if err := validation.AsError(validate.Struct(in)); err != nil {
		return Snapshot{}, err
	}

	form := url.Values{
		"fullname": {in.FullName},
		"phone":    {in.Phone},
		"address":  {in.Address},
		"pincode":  {in.Pincode},
	}
	var resp types.StatusResponse
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointProfile, "", form, &resp); err != nil {
		return Snapshot{}, err
	}
	if !resp.OK() {
		return Snapshot{}, rejected(resp.Message, "could not update profile", pkgerrors.CodeConflict)
	}

	updated := *current
	updated.Name = in.FullName
	updated.Phone = in.Phone
	updated.Address = in.Address
	updated.Pincode = in.Pincode
	if err := statestore.Save(ctx, sess, statestore.KeyUser, updated); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save session")
	}
	return Snapshot{User: &updated}, nil
}

func (s *service) ChangePassword(ctx context.Context, sessionID string, in PasswordChange) error {
	if _, err := RequireUser(ctx, s.store.Session(sessionID)); err != nil {
		return err
	}
	if err := validation.AsError(validate.Struct(in)); err != nil {
		return err
	}

	form := url.Values{
		"currentPassword": {in.CurrentPassword},
		"newPassword":     {in.NewPassword},
		"confirmPassword": {in.ConfirmPassword},
	}
	var resp types.StatusResponse
	if err := s.servlet.PostForm(ctx, sessionID, servlet.EndpointChangePassword, "", form, &resp); err != nil {
		return err
	}
	if !resp.OK() {
		return rejected(resp.Message, "could not change password", pkgerrors.CodeConflict)
	}
	return nil
}

// mergeUser overlays non-empty fetched fields on the stored snapshot, keeping role and block state.
func mergeUser(current, fetched types.User) types.User {
	out := current
	if fetched.UserID != "" {
		out.UserID = fetched.UserID
	}
	if fetched.Name != "" {
		out.Name = fetched.Name
	}
	if fetched.Email != "" {
		out.Email = fetched.Email
	}
	if fetched.Phone != "" {
		out.Phone = fetched.Phone
	}
	if fetched.Address != "" {
		out.Address = fetched.Address
	}
	if fetched.Pincode != "" {
		out.Pincode = fetched.Pincode
	}
	return out
}

func rejected(message, fallback string, code pkgerrors.Code) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = fallback
	}
	return pkgerrors.New(code, msg)
}
