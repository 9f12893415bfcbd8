package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"digiclassroom/session/internal/model"
	"digiclassroom/session/internal/tokenstore"
)

// Client talks to the DigiClassRoom REST backend. Tokens are opaque bearer
// strings read from the token store; the client never inspects them.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      tokenstore.Store
	autoRefresh bool
}

func New(baseURL string, tokens tokenstore.Store, timeout time.Duration, autoRefresh bool) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		tokens:      tokens,
		autoRefresh: autoRefresh,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, bearer string) error {
	op := method + " " + path

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &AuthError{Kind: KindBadResponse, Op: op, Err: err}
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reqBody)
	if err != nil {
		return &AuthError{Kind: KindUnreachable, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &AuthError{Kind: KindUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &AuthError{Kind: KindInvalidCredentials, Op: op}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &AuthError{Kind: KindBadResponse, Op: op, Err: errors.New(resp.Status)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &AuthError{Kind: KindBadResponse, Op: op, Err: err}
		}
	}
	return nil
}

// doAuthed attaches the stored access token. A 401 triggers one refresh
// round-trip and one retry when auto refresh is enabled; a failed refresh
// surfaces the original rejection.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out interface{}) error {
	rec, err := c.tokens.Load(ctx)
	if err != nil {
		// no stored tokens is a rejection; a broken store is a transport
		// problem, not bad credentials
		kind := KindUnreachable
		if errors.Is(err, tokenstore.ErrNoTokens) {
			kind = KindInvalidCredentials
		}
		return &AuthError{Kind: kind, Op: method + " " + path, Err: err}
	}

	err = c.do(ctx, method, path, body, out, rec.AccessToken)
	if err == nil || !c.autoRefresh || Kind(err) != KindInvalidCredentials {
		return err
	}

	renewed, refreshErr := c.refreshTokens(ctx, rec)
	if refreshErr != nil {
		return err
	}
	return c.do(ctx, method, path, body, out, renewed.AccessToken)
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) refreshTokens(ctx context.Context, rec tokenstore.Record) (tokenstore.Record, error) {
	role := rec.Role
	if !role.Valid() {
		role = model.RoleAdmin
	}
	var pair tokenPair
	payload := map[string]string{"refreshToken": rec.RefreshToken}
	if err := c.do(ctx, http.MethodPost, string(role)+"/refresh", payload, &pair, ""); err != nil {
		return tokenstore.Record{}, err
	}
	if pair.AccessToken == "" {
		return tokenstore.Record{}, &AuthError{Kind: KindBadResponse, Op: string(role) + "/refresh"}
	}
	renewed := tokenstore.Record{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Role:         rec.Role,
	}
	if err := c.tokens.Save(ctx, renewed); err != nil {
		return tokenstore.Record{}, &AuthError{Kind: KindUnreachable, Op: string(role) + "/refresh", Err: err}
	}
	return renewed, nil
}
