package api

import (
	"context"
	"net/http"

	"digiclassroom/session/internal/model"
	"digiclassroom/session/internal/tokenstore"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	InstitutionName string `json:"institutionName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

// userPayload deliberately carries no role field: the role on the
// published user always comes from the resolver that fetched it, never
// from the response body.
type userPayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	InstitutionName string `json:"institutionName"`
	Subject         string `json:"subject"`
	RollNumber      string `json:"rollNumber"`
}

type profileResponse struct {
	User userPayload `json:"user"`
}

type signupResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	Admin        userPayload `json:"admin"`
}

func (p userPayload) toUser(role model.Role) model.User {
	return model.User{
		ID:              p.ID,
		Name:            p.Name,
		Email:           p.Email,
		Role:            role,
		InstitutionName: p.InstitutionName,
		Subject:         p.Subject,
		RollNumber:      p.RollNumber,
	}
}

// Login exchanges credentials against the role-scoped login endpoint and
// fetches the matching profile. It performs no store writes: the session
// controller commits the returned record once the attempt is confirmed
// authoritative.
func (c *Client) Login(ctx context.Context, role model.Role, creds model.Credentials) (model.User, tokenstore.Record, error) {
	if !role.Valid() {
		return model.User{}, tokenstore.Record{}, &AuthError{Kind: KindBadResponse, Op: "login"}
	}

	var pair tokenPair
	req := loginRequest{Email: creds.Email, Password: creds.Password}
	if err := c.do(ctx, http.MethodPost, string(role)+"/login", req, &pair, ""); err != nil {
		return model.User{}, tokenstore.Record{}, err
	}
	if pair.AccessToken == "" {
		return model.User{}, tokenstore.Record{}, &AuthError{Kind: KindBadResponse, Op: string(role) + "/login"}
	}

	user, err := c.fetchProfile(ctx, role, pair.AccessToken)
	if err != nil {
		return model.User{}, tokenstore.Record{}, err
	}
	rec := tokenstore.Record{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Role:         role,
	}
	return user, rec, nil
}

// Signup registers a new admin. The profile rides in the signup response,
// so no follow-up fetch happens.
func (c *Client) Signup(ctx context.Context, payload model.SignupPayload) (model.User, tokenstore.Record, error) {
	req := signupRequest{
		Name:            payload.Name,
		InstitutionName: payload.InstitutionName,
		Email:           payload.Email,
		Password:        payload.Password,
	}
	var resp signupResponse
	if err := c.do(ctx, http.MethodPost, "admin/signup", req, &resp, ""); err != nil {
		return model.User{}, tokenstore.Record{}, err
	}
	if resp.AccessToken == "" || resp.Admin.ID == "" {
		return model.User{}, tokenstore.Record{}, &AuthError{Kind: KindBadResponse, Op: "admin/signup"}
	}
	rec := tokenstore.Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Role:         model.RoleAdmin,
	}
	return resp.Admin.toUser(model.RoleAdmin), rec, nil
}

// Me fetches the current profile using the stored access token. Used by
// bootstrap and profile reloads.
func (c *Client) Me(ctx context.Context, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, &AuthError{Kind: KindBadResponse, Op: "me"}
	}
	var resp profileResponse
	if err := c.doAuthed(ctx, http.MethodGet, string(role)+"/me", nil, &resp); err != nil {
		return model.User{}, err
	}
	if resp.User.ID == "" {
		return model.User{}, &AuthError{Kind: KindBadResponse, Op: string(role) + "/me"}
	}
	return resp.User.toUser(role), nil
}

func (c *Client) fetchProfile(ctx context.Context, role model.Role, bearer string) (model.User, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, string(role)+"/me", nil, &resp, bearer); err != nil {
		return model.User{}, err
	}
	if resp.User.ID == "" {
		return model.User{}, &AuthError{Kind: KindBadResponse, Op: string(role) + "/me"}
	}
	return resp.User.toUser(role), nil
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (c *Client) ChangePassword(ctx context.Context, role model.Role, oldPassword, newPassword string) error {
	if !role.Valid() {
		return &AuthError{Kind: KindBadResponse, Op: "password"}
	}
	req := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return c.doAuthed(ctx, http.MethodPost, string(role)+"/password", req, nil)
}
