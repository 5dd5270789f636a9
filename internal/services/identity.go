package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/rahul4469/speciessight/internal/models"
)

// ErrNoVerifiedEmail is returned when a provider account has no verified
// email address to key the local user on.
var ErrNoVerifiedEmail = errors.New("provider account has no verified email")

// IdentityProvider is one social sign-in option.
type IdentityProvider interface {
	ID() string
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Identity loads the signed-in account's profile with token.
	Identity(ctx context.Context, token *oauth2.Token) (*models.OAuthIdentity, error)
}

// OAuthClientConfig holds the app credentials registered with a provider.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GitHubProvider signs users in with GitHub and reads their profile
// through the REST API.
type GitHubProvider struct {
	oauth      *oauth2.Config
	apiBaseURL string // empty for api.github.com
}

func NewGitHubProvider(cfg OAuthClientConfig) *GitHubProvider {
	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     githuboauth.Endpoint,
		},
	}
}

func (p *GitHubProvider) ID() string   { return models.ProviderGitHub }
func (p *GitHubProvider) Name() string { return "GitHub" }

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(ctx, code)
}

func (p *GitHubProvider) client(ctx context.Context, token *oauth2.Token) (*github.Client, error) {
	client := github.NewClient(p.oauth.Client(ctx, token))
	if p.apiBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(p.apiBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = base
	}
	return client, nil
}

func (p *GitHubProvider) Identity(ctx context.Context, token *oauth2.Token) (*models.OAuthIdentity, error) {
	client, err := p.client(ctx, token)
	if err != nil {
		return nil, err
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub user: %w", err)
	}

	// The public profile email is often hidden; fall back to the
	// primary verified address from the emails endpoint.
	email := user.GetEmail()
	if email == "" {
		email, err = p.primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}

	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}

	return &models.OAuthIdentity{
		Provider:       models.ProviderGitHub,
		ProviderUserID: strconv.FormatInt(user.GetID(), 10),
		Email:          email,
		DisplayName:    name,
		AvatarURL:      user.GetAvatarURL(),
	}, nil
}

func (p *GitHubProvider) primaryEmail(ctx context.Context, client *github.Client) (string, error) {
	emails, _, err := client.Users.ListEmails(ctx, &github.ListOptions{PerPage: 100})
	if err != nil {
		return "", fmt.Errorf("failed to list GitHub emails: %w", err)
	}

	// Return primary verified email
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	// Fallback to first verified email
	for _, e := range emails {
		if e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	return "", ErrNoVerifiedEmail
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with Google via OpenID Connect userinfo.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg OAuthClientConfig) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) ID() string   { return models.ProviderGoogle }
func (p *GoogleProvider) Name() string { return "Google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(ctx, code)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) Identity(ctx context.Context, token *oauth2.Token) (*models.OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Google user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google userinfo error (%d): %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, ErrNoVerifiedEmail
	}

	return &models.OAuthIdentity{
		Provider:       models.ProviderGoogle,
		ProviderUserID: info.Sub,
		Email:          info.Email,
		DisplayName:    info.Name,
		AvatarURL:      info.Picture,
	}, nil
}
