package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

var (
	errMissingClientID       = errors.New("client id configuration required")
	errMissingClientSecret   = errors.New("client secret configuration required")
	errMissingRedirectURL    = errors.New("redirect url configuration required")
	errMissingAuthCode       = errors.New("authorization code must not be empty")
	errInvalidGitHubUser     = errors.New("github returned a user without an id")
	ErrInvalidProviderConfig = errors.New("auth: invalid github provider config")
)

// GitHubProviderConfig bundles configuration required to instantiate a GitHubProvider.
type GitHubProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint overrides the GitHub OAuth endpoints; zero value uses github.Endpoint.
	Endpoint   oauth2.Endpoint
	APIBaseURL string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GitHubProvider runs the OAuth 2.0 authorization code flow against GitHub and yields Claims.
type GitHubProvider struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

type gitHubUser struct {
	ID        int64   `json:"id"`
	Login     *string `json:"login"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHubProvider constructs a provider with validated configuration.
func NewGitHubProvider(cfg GitHubProviderConfig) (*GitHubProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingClientID)
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingClientSecret)
	}
	redirectURL := strings.TrimSpace(cfg.RedirectURL)
	if redirectURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingRedirectURL)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = github.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	apiBaseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultGitHubAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name reports the provider tag stamped on issued claims.
func (p *GitHubProvider) Name() string {
	return ProviderGitHub
}

// AuthURL returns the GitHub authorize URL carrying the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the subject's Claims.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (Claims, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Claims{}, errMissingAuthCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Claims{}, fmt.Errorf("auth: exchanging github code: %w", err)
	}
	client := p.oauth.Client(ctx, token)

	var user gitHubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return Claims{}, err
	}
	if user.ID == 0 {
		return Claims{}, errInvalidGitHubUser
	}

	email := user.Email
	if email == nil || strings.TrimSpace(*email) == "" {
		email = p.primaryEmail(ctx, client)
	}

	return Claims{
		UID:      strconv.FormatInt(user.ID, 10),
		Provider: ProviderGitHub,
		Info: ClaimsInfo{
			Nickname: user.Login,
			Name:     user.Name,
			Email:    email,
			Image:    user.AvatarURL,
		},
	}, nil
}

// primaryEmail looks up the verified primary address when the public profile hides it.
func (p *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) *string {
	var emails []gitHubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		p.logger.Debug("github email lookup failed", zap.Error(err))
		return nil
	}
	for _, candidate := range emails {
		if candidate.Primary && candidate.Verified && candidate.Email != "" {
			address := candidate.Email
			return &address
		}
	}
	return nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("auth: building github request %s: %w", path, err)
	}
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("auth: calling github %s: %w", path, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: github %s returned status %d", path, response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("auth: decoding github %s: %w", path, err)
	}
	return nil
}
