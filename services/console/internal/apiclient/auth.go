package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"adminconsole/pkg/domain"
)

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login exchanges credentials for a token and profile.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	var data []byte
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "/auth/login", payload, &data); err != nil {
		return LoginResult{}, err
	}
	res, err := decodeEntity[LoginResult](data, "data")
	if err != nil {
		return LoginResult{}, err
	}
	if strings.TrimSpace(res.Token) == "" {
		return LoginResult{}, errors.New("login response has no token")
	}
	return res, nil
}

// ProfileInput is the self-service profile update.
type ProfileInput struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UpdateMe updates the signed-in user's profile and returns the stored one.
func (c *Client) UpdateMe(ctx context.Context, in ProfileInput) (domain.User, error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodPatch, "/auth/me", "/auth/me", in, &data); err != nil {
		return domain.User{}, err
	}
	return decodeEntity[domain.User](data, "user", "data")
}
