package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/yrajput/closet-organizer/internal/model"
)

// ProviderConfig describes the GitHub OAuth application and endpoints.
//
// AuthURL/TokenURL/APIURL default to github.com; tests and GitHub Enterprise
// installs point them elsewhere.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	AuthURL      string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
}

// AuthorizationResponse is the query GitHub sends to the callback URL.
// It carries either a grant (Code) or an explicit error.
type AuthorizationResponse struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Params           url.Values
}

// AuthorizationResponseFromQuery reads the callback parameters. Params is
// the redacted copy, so the grant never travels further than Code.
func AuthorizationResponseFromQuery(q url.Values) AuthorizationResponse {
	return AuthorizationResponse{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		Params:           RedactParams(q),
	}
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow and the profile lookup that follows it.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. AuthURL sends the browser to GitHub with our ClientID and scope read:org.
//  2. GitHub redirects back to CallbackURL with a single-use code (or an error).
//  3. Exchange trades the code for an access token, server to server.
//  4. ResolveIdentity calls GET /user with the token as bearer credential.
//
// The provider keeps no state between calls; tokens live only in the session.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
	client *http.Client
}

// NewGitHubProvider creates a GitHubProvider. Every outbound call uses an
// HTTP client bounded by cfg.Timeout so a slow provider resolves to a failure
// instead of hanging the handler.
func NewGitHubProvider(cfg ProviderConfig) *GitHubProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com/"
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:org"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// The state value is echoed back on the callback and checked against the
// pending-login cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback grant for an access token.
//
// A callback carrying error=..., a callback without a code, or a token
// endpoint rejection all produce *AuthFailure. The exchange is never retried:
// authorization codes are single-use.
func (p *GitHubProvider) Exchange(ctx context.Context, resp AuthorizationResponse) (string, error) {
	if resp.Error != "" {
		return "", &AuthFailure{
			Code:        resp.Error,
			Description: resp.ErrorDescription,
			Params:      resp.Params,
		}
	}
	if resp.Code == "" {
		return "", &AuthFailure{
			Code:        "missing_code",
			Description: "the authorization response carried no code",
			Params:      resp.Params,
		}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.config.Exchange(ctx, resp.Code)
	if err != nil {
		failure := &AuthFailure{
			Code:        "token_exchange_failed",
			Description: err.Error(),
			Params:      resp.Params,
			Err:         err,
		}
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.ErrorCode != "" {
			failure.Code = rErr.ErrorCode
			failure.Description = rErr.ErrorDescription
		}
		return "", failure
	}
	if token.AccessToken == "" {
		return "", &AuthFailure{
			Code:        "empty_token",
			Description: "the token endpoint returned no access token",
			Params:      resp.Params,
		}
	}
	return token.AccessToken, nil
}

// ResolveIdentity fetches the caller's GitHub profile with token.
//
// Only login is required; every other field is kept in Identity.Profile.
// Failures are *ResolutionFailure with a Kind naming what went wrong.
func (p *GitHubProvider) ResolveIdentity(ctx context.Context, token string) (*model.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"user", nil)
	if err != nil {
		return nil, &ResolutionFailure{Kind: ResolutionTransport, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ResolutionFailure{Kind: ResolutionTransport, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ResolutionFailure{
			Kind:   ResolutionStatus,
			Detail: fmt.Sprintf("GitHub /user returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var profile map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, &ResolutionFailure{Kind: ResolutionMalformed, Detail: "decoding GitHub /user response: " + err.Error(), Err: err}
	}

	login, _ := profile["login"].(string)
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, &ResolutionFailure{Kind: ResolutionMissingLogin, Detail: "GitHub /user response has no login"}
	}

	return &model.Identity{Login: login, Profile: profile}, nil
}
