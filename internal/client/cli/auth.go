package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) askLogin(login string) (string, error) {
	if login != "" {
		return login, nil
	}
	return getSimpleText(a.reader, "Login", a.out)
}

// Register prompts for whatever the arguments did not supply and creates an
// account. The password slice is wiped before returning.
func (a *App) Register(ctx context.Context, login string) error {
	login, err := a.askLogin(login)
	if err != nil {
		return err
	}

	displayName, err := getSimpleText(a.reader, "Display name (empty for login)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return errors.New("passwords do not match")
	}

	id, err := a.client.Register(ctx, login, displayName, string(password))
	if err != nil {
		return err
	}

	a.printf("Registered %s (subject %s)\n", login, id)
	return nil
}

// Login authenticates and stores the issued tokens.
func (a *App) Login(ctx context.Context, login string) error {
	login, err := a.askLogin(login)
	if err != nil {
		return err
	}

	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	tokens, err := a.client.Login(ctx, login, string(password))
	if err != nil {
		return err
	}

	if err := a.session.Save(ctx, login, tokens); err != nil {
		return err
	}

	a.printf("Logged in as %s, access token valid until %s\n", login, tokens.AccessExpiresAt.Format(time.RFC3339))
	return nil
}

// Refresh rotates the stored refresh token.
func (a *App) Refresh(ctx context.Context) error {
	tokens, err := a.client.Refresh(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = a.session.Clear(ctx)
			return errors.New("session is no longer valid, log in again")
		}
		return err
	}

	if err := a.session.Save(ctx, "", tokens); err != nil {
		return err
	}

	a.printf("Tokens refreshed, access token valid until %s\n", tokens.AccessExpiresAt.Format(time.RFC3339))
	return nil
}

// Revoke ends the stored session on the server and locally.
func (a *App) Revoke(ctx context.Context) error {
	if err := a.client.Revoke(ctx); err != nil && !errors.Is(err, client.ErrNotLoggedIn) {
		return err
	}

	if err := a.session.Clear(ctx); err != nil {
		return err
	}

	a.printf("Session revoked\n")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	id, err := a.client.WhoAmI(ctx)
	if err != nil {
		return err
	}

	roles := "-"
	if len(id.Roles) > 0 {
		roles = strings.Join(id.Roles, ", ")
	}

	a.printf("Subject:  %s\nName:     %s\nRoles:    %s\nExpires:  %s\n", id.SubjectID, id.Name, roles, id.ExpiresAt)
	return nil
}
