package client

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
)

const (
	keyLogin        = "login"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "access_expires_at"
)

// Tokens is the pair handed out by Login and Refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// AccessExpiresAt is computed locally from expires_in and is informational.
	AccessExpiresAt time.Time
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Session stores the login state of the CLI.
type Session struct {
	repo session.Repository
}

func NewSession(repo session.Repository) *Session {
	return &Session{repo: repo}
}

// Load returns the stored login and tokens. A missing session yields empty
// values and no error.
func (s *Session) Load(ctx context.Context) (string, Tokens, error) {
	var t Tokens

	login, _, err := s.repo.Get(ctx, keyLogin)
	if err != nil {
		return "", t, err
	}
	if t.AccessToken, _, err = s.repo.Get(ctx, keyAccessToken); err != nil {
		return "", t, err
	}
	if t.RefreshToken, _, err = s.repo.Get(ctx, keyRefreshToken); err != nil {
		return "", t, err
	}
	exp, ok, err := s.repo.Get(ctx, keyExpiresAt)
	if err != nil {
		return "", t, err
	}
	if ok {
		if unix, perr := strconv.ParseInt(exp, 10, 64); perr == nil {
			t.AccessExpiresAt = time.Unix(unix, 0).UTC()
		}
	}
	return login, t, nil
}

func (s *Session) Save(ctx context.Context, login string, t Tokens) error {
	values := map[string]string{
		keyAccessToken:  t.AccessToken,
		keyRefreshToken: t.RefreshToken,
		keyExpiresAt:    strconv.FormatInt(t.AccessExpiresAt.Unix(), 10),
	}
	if login != "" {
		values[keyLogin] = login
	}
	for k, v := range values {
		if err := s.repo.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}
