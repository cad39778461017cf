package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"ragdesk/internal/backend"
	"ragdesk/internal/ui"
)

// minPasswordLength matches the backend's validation.
const minPasswordLength = 8

// fail shows err as a toast and marks it reported.
func (a *app) fail(err error, fallback string) error {
	a.toasts.Error(backend.UserMessage(err, fallback))
	return reported(err)
}

// tokenSession carries a fresh token before it is stored.
type tokenSession string

func (t tokenSession) Token() string { return string(t) }
func (t tokenSession) Logout() error { return nil }

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var (
		userID  string
		backup  bool
		refresh bool
	)
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "user-id", "", "account id for the 2FA step")
	flagSet.BoolVar(&backup, "backup-code", false, "the 2FA code is a backup code")
	flagSet.BoolVar(&refresh, "refresh", false, "renew the saved session instead of signing in")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if refresh {
		if err := a.requireAuth(); err != nil {
			return err
		}
		if !a.refreshSession(ctx) {
			return reported(errors.New("session refresh failed"))
		}
		a.toasts.Success("Session renewed")
		return nil
	}
	a.router.Navigate(ui.ViewLogin)

	email := strings.TrimSpace(strings.Join(flagSet.Args(), " "))
	if email == "" {
		var err error
		if email, err = a.reader.ReadLine("Email: "); err != nil {
			return err
		}
	}
	password, err := a.reader.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	var token *backend.Token
	err = a.withSpinner("Signing in...", func() error {
		token, err = a.api.Login(ctx, email, password)
		return err
	})
	if err != nil {
		return a.fail(err, "Login failed")
	}

	if token.Requires2FA {
		if token.User != nil {
			userID = token.User.ID
		}
		if userID == "" {
			if userID, err = a.reader.ReadLine("Account ID: "); err != nil {
				return err
			}
		}
		code, err := a.reader.ReadLine("Authentication code: ")
		if err != nil {
			return err
		}
		token, err = a.api.VerifyTwoFactor(ctx, backend.TwoFactorVerify{
			UserID:       userID,
			Code:         code,
			IsBackupCode: backup,
		})
		if err != nil {
			return a.fail(err, "Verification failed")
		}
	}

	return a.establish(ctx, token)
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	a.router.Navigate(ui.ViewRegister)

	email, err := a.reader.ReadLine("Email: ")
	if err != nil {
		return err
	}
	fullName, err := a.reader.ReadLine("Full name (optional): ")
	if err != nil {
		return err
	}
	password, err := a.readNewPassword()
	if err != nil {
		return err
	}

	token, err := a.api.Register(ctx, backend.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return a.fail(err, "Registration failed")
	}
	return a.establish(ctx, token)
}

// establish stores a session for token, fetching the user when the
// response did not include one.
func (a *app) establish(ctx context.Context, token *backend.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("the backend did not return an access token")
	}

	user := token.User
	if user == nil {
		meClient := backend.NewClient(a.cfg.APIURL, a.cfg.RequestTimeout,
			backend.WithSession(tokenSession(token.AccessToken)),
			backend.WithLogger(a.logger.Named("backend")),
		)
		var err error
		if user, err = meClient.Me(ctx); err != nil {
			return a.fail(err, "Failed to load your profile")
		}
	}

	if err := a.session.SetAuthWithRefresh(user, token.AccessToken, token.RefreshToken); err != nil {
		return err
	}
	a.hooks.Cache().Clear()
	a.router.Navigate(ui.ViewChat)
	a.toasts.Success(fmt.Sprintf("Signed in as %s", user.DisplayName()))
	return nil
}

// refreshSession renews the access token from the stored refresh token.
// A rejected refresh token signs the user out through the usual 401 path.
func (a *app) refreshSession(ctx context.Context) bool {
	if err := a.session.Refresh(ctx, a.api); err != nil {
		a.logger.Warn("session refresh failed", zap.Error(err))
		if errors.Is(err, backend.ErrUnauthorized) {
			a.hooks.Cache().Clear()
			return false
		}
		a.toasts.Error(backend.UserMessage(err, "Failed to renew your session"))
		return false
	}
	return true
}

func (a *app) cmdLogout(ctx context.Context, args []string) error {
	if a.session.IsAuthenticated() {
		if err := a.api.LogoutRemote(ctx); err != nil {
			a.logger.Warn("remote logout failed", zap.Error(err))
		}
	}
	if err := a.session.Logout(); err != nil {
		return err
	}
	a.hooks.Cache().Clear()
	a.router.Navigate(ui.ViewLogin)
	a.toasts.Info("Signed out")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.session.RefreshUser(ctx, a.api)
	return show(a, a.hooks.CurrentUser(ctx), a.display.PrintUser)
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewSettings)
	if len(args) < 2 || args[0] != "name" {
		return errors.New("usage: profile name <full name>")
	}

	if _, err := a.hooks.UpdateProfile(ctx, backend.ProfileUpdate{FullName: strings.Join(args[1:], " ")}); err != nil {
		return reported(err)
	}
	a.session.RefreshUser(ctx, a.api)
	return nil
}

func (a *app) cmdPasswd(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewSettings)

	current, err := a.reader.ReadPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := a.readNewPassword()
	if err != nil {
		return err
	}

	if err := a.hooks.ChangePassword(ctx, backend.PasswordChange{CurrentPassword: current, NewPassword: next}); err != nil {
		return reported(err)
	}
	// The backend revokes existing tokens on a password change.
	if err := a.session.Logout(); err != nil {
		return err
	}
	a.hooks.Cache().Clear()
	a.display.PrintInfo("Sign in again with your new password.")
	return nil
}

func (a *app) readNewPassword() (string, error) {
	password, err := a.reader.ReadPassword("New password: ")
	if err != nil {
		return "", err
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	confirm, err := a.reader.ReadPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func (a *app) cmdTwoFactor(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewSettings)
	if len(args) == 0 {
		return errors.New("usage: 2fa setup|enable [code]|disable")
	}

	switch args[0] {
	case "setup":
		setup, err := a.hooks.SetupTwoFactor(ctx)
		if err != nil {
			return reported(err)
		}
		a.display.PrintTwoFactorSetup(setup)
		a.display.PrintInfo("Add the secret to your authenticator, then run `ragdesk 2fa enable <code>`.")
		return nil

	case "enable":
		code, err := a.argOrPrompt(args[1:], "Authentication code: ")
		if err != nil {
			return err
		}
		return reported(a.hooks.EnableTwoFactor(ctx, code))

	case "disable":
		password, err := a.reader.ReadPassword("Password: ")
		if err != nil {
			return err
		}
		code, err := a.reader.ReadLine("Authentication code: ")
		if err != nil {
			return err
		}
		return reported(a.hooks.DisableTwoFactor(ctx, password, code))
	}
	return fmt.Errorf("unknown 2fa command %q", args[0])
}

// argOrPrompt returns the joined args, prompting when there are none.
func (a *app) argOrPrompt(args []string, prompt string) (string, error) {
	if v := strings.TrimSpace(strings.Join(args, " ")); v != "" {
		return v, nil
	}
	return a.reader.ReadLine(prompt)
}
