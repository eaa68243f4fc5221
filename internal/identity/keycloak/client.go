// Package keycloak implements identity.Provider against the Keycloak admin
// REST API using a client-credentials service account.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mentora/internal/identity"
	"mentora/internal/platform/config"
	dErrors "mentora/pkg/domain-errors"
)

// tokenSkew is subtracted from the advertised token lifetime so we refresh
// before the server-side expiry.
const tokenSkew = 30 * time.Second

type Client struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(cfg config.KeycloakConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger.With("component", "keycloak"),
	}
}

var _ identity.Provider = (*Client)(nil)

type userRepresentation struct {
	ID          string           `json:"id,omitempty"`
	Username    string           `json:"username"`
	Email       string           `json:"email"`
	Enabled     bool             `json:"enabled"`
	Credentials []credentialRep  `json:"credentials,omitempty"`
	Attributes  map[string][]any `json:"attributes,omitempty"`
}

type credentialRep struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// CreateDisabled provisions a disabled identity with a password credential.
// Username and email are pre-checked so callers get a precise conflict
// message; the create call itself still maps 409 to CodeConflict in case of
// a race between the check and the insert.
func (c *Client) CreateDisabled(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	taken, err := c.emailExists(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	if taken {
		return uuid.Nil, dErrors.New(dErrors.CodeConflict, "email already registered")
	}

	taken, err = c.usernameExists(ctx, username)
	if err != nil {
		return uuid.Nil, err
	}
	if taken {
		return uuid.Nil, dErrors.New(dErrors.CodeConflict, "username already taken")
	}

	rep := userRepresentation{
		Username: username,
		Email:    email,
		Enabled:  false,
		Credentials: []credentialRep{{
			Type:      "password",
			Value:     password,
			Temporary: false,
		}},
	}

	resp, err := c.do(ctx, http.MethodPost, c.adminPath("/users"), rep)
	if err != nil {
		return uuid.Nil, err
	}
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return uuid.Nil, dErrors.New(dErrors.CodeConflict, "identity already exists")
	default:
		return uuid.Nil, unexpectedStatus("create user", resp)
	}

	id, err := idFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse created user id")
	}
	c.logger.Info("identity created disabled", "user_id", id)
	return id, nil
}

// Enable performs a read-modify-write: the admin API replaces the whole user
// representation on PUT, so we fetch before flipping the flag.
func (c *Client) Enable(ctx context.Context, id uuid.UUID) error {
	rep, err := c.getUser(ctx, id)
	if err != nil {
		return err
	}
	rep.Enabled = true
	rep.Credentials = nil

	resp, err := c.do(ctx, http.MethodPut, c.adminPath("/users/"+id.String()), rep)
	if err != nil {
		return err
	}
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	default:
		return unexpectedStatus("enable user", resp)
	}
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.adminPath("/users/"+id.String()), nil)
	if err != nil {
		return err
	}
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	default:
		return unexpectedStatus("delete user", resp)
	}
}

func (c *Client) Enablement(ctx context.Context, id uuid.UUID) (identity.Enablement, error) {
	rep, err := c.getUser(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return identity.EnablementAbsent, nil
		}
		return identity.EnablementAbsent, err
	}
	if rep.Enabled {
		return identity.EnablementEnabled, nil
	}
	return identity.EnablementDisabled, nil
}

// AssignRole grants a realm role by looking up its representation first; the
// role-mapping endpoint requires the role id, not just its name.
func (c *Client) AssignRole(ctx context.Context, id uuid.UUID, role string) error {
	resp, err := c.do(ctx, http.MethodGet, c.adminPath("/roles/"+url.PathEscape(role)), nil)
	if err != nil {
		return err
	}
	var roleRep struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	err = decodeBody(resp, &roleRep)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "realm role not found: "+role)
		}
		return err
	}

	resp, err = c.do(ctx, http.MethodPost, c.adminPath("/users/"+id.String()+"/role-mappings/realm"), []any{roleRep})
	if err != nil {
		return err
	}
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	default:
		return unexpectedStatus("assign role", resp)
	}
}

func (c *Client) getUser(ctx context.Context, id uuid.UUID) (*userRepresentation, error) {
	resp, err := c.do(ctx, http.MethodGet, c.adminPath("/users/"+id.String()), nil)
	if err != nil {
		return nil, err
	}
	var rep userRepresentation
	if err := decodeBody(resp, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *Client) emailExists(ctx context.Context, email string) (bool, error) {
	return c.anyUsers(ctx, url.Values{"email": {email}, "exact": {"true"}})
}

func (c *Client) usernameExists(ctx context.Context, username string) (bool, error) {
	return c.anyUsers(ctx, url.Values{"username": {username}, "exact": {"true"}})
}

func (c *Client) anyUsers(ctx context.Context, query url.Values) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.adminPath("/users")+"?"+query.Encode(), nil)
	if err != nil {
		return false, err
	}
	var users []userRepresentation
	if err := decodeBody(resp, &users); err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// do sends an authenticated admin request, retrying once with a fresh token
// when the cached one has been invalidated server side.
func (c *Client) do(ctx context.Context, method, rawURL string, body any) (*http.Response, error) {
	resp, err := c.send(ctx, method, rawURL, body, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drainClose(resp)
		return c.send(ctx, method, rawURL, body, true)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, rawURL string, body any, forceToken bool) (*http.Response, error) {
	token, err := c.token(ctx, forceToken)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unreachable")
	}
	return resp, nil
}

// token returns the cached service-account token, fetching a new one when it
// is missing, near expiry, or a refresh is forced.
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unreachable")
	}
	defer drainClose(resp)

	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus("service account token", resp)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "decode token response")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenSkew)
	return c.accessToken, nil
}

func (c *Client) adminPath(suffix string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.baseURL, c.realm, suffix)
}

func decodeBody(resp *http.Response, out any) error {
	defer drainClose(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	default:
		return unexpectedStatus("read response", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode response body")
	}
	return nil
}

func idFromLocation(location string) (uuid.UUID, error) {
	if location == "" {
		return uuid.Nil, fmt.Errorf("missing Location header")
	}
	idx := strings.LastIndex(location, "/")
	return uuid.Parse(location[idx+1:])
}

func unexpectedStatus(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return dErrors.New(dErrors.CodeInternal,
		fmt.Sprintf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet))))
}

func drainClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()
}
