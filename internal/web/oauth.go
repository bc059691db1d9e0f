package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const discordAPI = "https://discord.com/api/v10"

// DiscordClient drives the OAuth2 authorization-code flow and the two
// identity reads the dashboard needs.
type DiscordClient struct {
	clientID     string
	clientSecret string
	redirectURL  string
	baseURL      string
	httpClient   *http.Client
}

type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type DiscordGuild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       bool   `json:"owner"`
	Permissions string `json:"permissions"`
}

func NewDiscordClient(clientID, clientSecret, redirectURL string) *DiscordClient {
	return &DiscordClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		baseURL:      discordAPI,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// AuthURL builds the authorization redirect for the login handler.
func (c *DiscordClient) AuthURL(state string) string {
	q := url.Values{
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURL},
		"response_type": {"code"},
		"scope":         {"identify guilds"},
		"state":         {state},
	}
	return "https://discord.com/oauth2/authorize?" + q.Encode()
}

// Exchange trades the authorization code for a token.
func (c *DiscordClient) Exchange(ctx context.Context, code string) (OAuthToken, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.redirectURL},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return OAuthToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var token OAuthToken
	if err := c.do(req, &token); err != nil {
		return OAuthToken{}, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

func (c *DiscordClient) CurrentUser(ctx context.Context, accessToken string) (DiscordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return DiscordUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	var user DiscordUser
	if err := c.do(req, &user); err != nil {
		return DiscordUser{}, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}

func (c *DiscordClient) UserGuilds(ctx context.Context, accessToken string) ([]DiscordGuild, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me/guilds", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	var guilds []DiscordGuild
	if err := c.do(req, &guilds); err != nil {
		return nil, fmt.Errorf("user guilds: %w", err)
	}
	return guilds, nil
}

func (c *DiscordClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
