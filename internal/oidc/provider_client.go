package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/oglimmer/mdalert/errors"
)

// TokenResponse is the token endpoint's JSON response for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserInfo is the userinfo endpoint's response, kept for display purposes.
type UserInfo struct {
	Sub               string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// DisplayName picks the most human-friendly identity field that is set.
func (u *UserInfo) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.PreferredUsername != "":
		return u.PreferredUsername
	case u.Email != "":
		return u.Email
	default:
		return u.Sub
	}
}

// ProviderClient talks to the OIDC provider's token and userinfo endpoints.
type ProviderClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewProviderClient creates a client for the given OAuth2 client registration.
func NewProviderClient(clientID, clientSecret, redirectURI string, httpClient *http.Client, logger zerolog.Logger) *ProviderClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ProviderClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   httpClient,
		logger:       logger.With().Str("component", "provider").Logger(),
	}
}

// Exchange trades an authorization code plus its PKCE verifier for tokens.
func (c *ProviderClient) Exchange(ctx context.Context, tokenEndpoint, code, verifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
		"code_verifier": {verifier},
	}
	return c.postToken(ctx, "oidc.exchange", tokenEndpoint, form)
}

// Refresh trades a refresh token for a fresh token set.
func (c *ProviderClient) Refresh(ctx context.Context, tokenEndpoint, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.postToken(ctx, "oidc.refresh", tokenEndpoint, form)
}

func (c *ProviderClient) postToken(ctx context.Context, op, tokenEndpoint string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProtocol(op, tokenEndpointError(resp))
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, apperrors.NewDecode(op, err)
	}
	if tok.AccessToken == "" {
		return nil, apperrors.NewDecode(op, fmt.Errorf("token response has no access_token"))
	}

	c.logger.Debug().Str("op", op).Int("expires_in", tok.ExpiresIn).Msg("token response received")

	return &tok, nil
}

// tokenEndpointError extracts the standard OAuth2 error body if present,
// otherwise falls back to the status code.
func tokenEndpointError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		if oauthErr.Description != "" {
			return fmt.Sprintf("%s: %s", oauthErr.Error, oauthErr.Description)
		}
		return oauthErr.Error
	}
	return fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
}

// FetchUserInfo retrieves the authenticated user's identity.
func (c *ProviderClient) FetchUserInfo(ctx context.Context, userinfoEndpoint, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork("oidc.userinfo", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProtocol("oidc.userinfo",
			fmt.Sprintf("userinfo endpoint returned status %d", resp.StatusCode))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperrors.NewDecode("oidc.userinfo", err)
	}

	return &info, nil
}

// AuthorizationParams are the query parameters of the browser-rendered
// authorization URL.
type AuthorizationParams struct {
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Challenge   string
}

// AuthorizationURL builds the authorization-code request URL with the S256
// challenge method.
func AuthorizationURL(authorizationEndpoint string, p AuthorizationParams) (string, error) {
	u, err := url.Parse(authorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorization endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", p.Scope)
	q.Set("state", p.State)
	q.Set("code_challenge", p.Challenge)
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
