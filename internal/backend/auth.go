package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// ProfileUpdate is the body of PATCH /auth/me
type ProfileUpdate struct {
	FullName string `json:"full_name,omitempty"`
}

// PasswordChange is the body of POST /auth/change-password
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TwoFactorSetup is the secret material for enrolling an authenticator
type TwoFactorSetup struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

// TwoFactorVerify is the body of POST /auth/verify-2fa
type TwoFactorVerify struct {
	UserID       string `json:"user_id"`
	Code         string `json:"code"`
	IsBackupCode bool   `json:"is_backup_code"`
}

// Login exchanges credentials for tokens. The backend expects an OAuth2
// password form, so the email travels as "username".
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var token Token
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &token)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Register creates an account and returns tokens for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Token, error) {
	var token Token
	if err := c.postJSON(ctx, "/auth/register", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// VerifyTwoFactor completes a login that answered requires_2fa.
func (c *Client) VerifyTwoFactor(ctx context.Context, req TwoFactorVerify) (*Token, error) {
	var token Token
	if err := c.postJSON(ctx, "/auth/verify-2fa", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RefreshToken trades a refresh token for a new token pair. The old
// refresh token is revoked by the backend.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	var token Token
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.postJSON(ctx, "/auth/refresh", body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Me returns the current user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes profile fields of the current user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.patchJSON(ctx, "/auth/me", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the current user's password.
func (c *Client) ChangePassword(ctx context.Context, req PasswordChange) (*Message, error) {
	var msg Message
	if err := c.postJSON(ctx, "/auth/change-password", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LogoutRemote tells the backend the session is over.
func (c *Client) LogoutRemote(ctx context.Context) error {
	return c.postJSON(ctx, "/auth/logout", nil, nil)
}

// SetupTwoFactor starts authenticator enrollment.
func (c *Client) SetupTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	var setup TwoFactorSetup
	if err := c.postJSON(ctx, "/auth/2fa/setup", nil, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

// EnableTwoFactor confirms enrollment with a code from the authenticator.
func (c *Client) EnableTwoFactor(ctx context.Context, code string) (*Message, error) {
	var msg Message
	body := map[string]string{"code": code}
	if err := c.postJSON(ctx, "/auth/2fa/enable", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DisableTwoFactor turns 2FA off; both the password and a current code are required.
func (c *Client) DisableTwoFactor(ctx context.Context, password, code string) (*Message, error) {
	var msg Message
	body := map[string]string{"password": password, "code": code}
	if err := c.postJSON(ctx, "/auth/2fa/disable", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
